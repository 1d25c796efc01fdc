package thumbnail

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/blob"
	"github.com/noisersup/filesmanager/database/memory"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
	"github.com/noisersup/filesmanager/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const testMaxPixels = 50_000_000

type fixture struct {
	w     *Worker
	db    *memory.Database
	blobs *blob.Store
}

func newFixture(t *testing.T) *fixture {
	db := memory.New()
	blobs := blob.New(t.TempDir())
	return &fixture{w: NewWorker(db, blobs, testMaxPixels, logger.Discard()), db: db, blobs: blobs}
}

func (fx *fixture) upload(t *testing.T, owner uuid.UUID, fileType models.FileType, data []byte) *models.File {
	path, err := fx.blobs.Save(data)
	require.NoError(t, err)
	f := &models.File{Id: uuid.New(), UserId: owner, Name: "pic", Type: fileType, LocalPath: path}
	require.NoError(t, fx.db.NewFile(context.Background(), f))
	return f
}

func jobFor(f *models.File) []byte {
	payload, _ := json.Marshal(models.FileJob{FileId: f.Id.String(), UserId: f.UserId.String()})
	return payload
}

func Test_HandleWritesThreePreviews(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, uuid.New(), models.TypeImage, encodePNG(t, gradient(1000, 600)))

	require.NoError(t, fx.w.Handle(context.Background(), jobFor(f)))

	for width, height := range map[int]int{500: 300, 250: 150, 100: 60} {
		data, err := os.ReadFile(blob.DerivativePath(f.LocalPath, width))
		require.NoError(t, err, "width %d", width)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, width, cfg.Width)
		assert.Equal(t, height, cfg.Height)
	}
}

func Test_HandleIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, uuid.New(), models.TypeImage, encodePNG(t, gradient(640, 480)))
	ctx := context.Background()

	require.NoError(t, fx.w.Handle(ctx, jobFor(f)))
	first := map[int][]byte{}
	for _, w := range []int{100, 250, 500} {
		data, err := os.ReadFile(blob.DerivativePath(f.LocalPath, w))
		require.NoError(t, err)
		first[w] = data
	}

	require.NoError(t, fx.w.Handle(ctx, jobFor(f)))
	for w, want := range first {
		data, err := os.ReadFile(blob.DerivativePath(f.LocalPath, w))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, data), "width %d differs between runs", w)
	}
}

func Test_HandleKeepsJPEG(t *testing.T) {
	fx := newFixture(t)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(300, 300), nil))
	f := fx.upload(t, uuid.New(), models.TypeImage, buf.Bytes())

	require.NoError(t, fx.w.Handle(context.Background(), jobFor(f)))

	data, err := os.ReadFile(blob.DerivativePath(f.LocalPath, 100))
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func Test_HandleRejectsBadJobs(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	err := fx.w.Handle(ctx, []byte(`{"userId":"`+owner.String()+`"}`))
	assert.True(t, queue.IsPermanent(err))
	assert.EqualError(t, err, "Missing fileId")

	err = fx.w.Handle(ctx, []byte(`{"fileId":"`+uuid.New().String()+`"}`))
	assert.True(t, queue.IsPermanent(err))
	assert.EqualError(t, err, "Missing userId")

	err = fx.w.Handle(ctx, []byte(`not json`))
	assert.True(t, queue.IsPermanent(err))

	// the owner does not match, worth a retry in case of a lagging store
	f := fx.upload(t, owner, models.TypeImage, encodePNG(t, gradient(10, 10)))
	err = fx.w.Handle(ctx, jobFor(&models.File{Id: f.Id, UserId: uuid.New()}))
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	assert.False(t, fx.blobs.Exists(blob.DerivativePath(f.LocalPath, 100)))

	doc := fx.upload(t, owner, models.TypeFile, []byte("text"))
	err = fx.w.Handle(ctx, jobFor(doc))
	assert.True(t, queue.IsPermanent(err))

	broken := fx.upload(t, owner, models.TypeImage, []byte("not an image"))
	err = fx.w.Handle(ctx, jobFor(broken))
	assert.True(t, queue.IsPermanent(err))
}

func Test_ResizeKeepsAtLeastOnePixel(t *testing.T) {
	src, err := Decode(encodePNG(t, gradient(2000, 1)), testMaxPixels)
	require.NoError(t, err)

	data, err := src.Resize(100)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 1, cfg.Height)
}

// withDimensions rewrites the IHDR size of a PNG, keeping the chunk checksum valid
func withDimensions(t *testing.T, data []byte, width, height uint32) []byte {
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func Test_DecodeRefusesHugeHeader(t *testing.T) {
	data := withDimensions(t, encodePNG(t, gradient(4, 4)), 60000, 60000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 60000, cfg.Width)

	_, err = Decode(data, testMaxPixels)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func Test_HandleRejectsOversizedImage(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, uuid.New(), models.TypeImage, withDimensions(t, encodePNG(t, gradient(4, 4)), 20000, 20000))

	err := fx.w.Handle(context.Background(), jobFor(f))
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, fx.blobs.Exists(blob.DerivativePath(f.LocalPath, 100)))
}
