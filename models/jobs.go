package models

// Queue names shared by producers and workers
const (
	FileQueue = "fileQueue"
	UserQueue = "userQueue"
)

// FileJob asks the thumbnail worker to derive previews of an image
type FileJob struct {
	FileId string `json:"fileId"`
	UserId string `json:"userId"`
}

// UserJob is published once per registered user
type UserJob struct {
	UserId string `json:"userId"`
}
