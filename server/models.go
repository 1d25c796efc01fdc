package server

import "github.com/noisersup/filesmanager/models"

// REQUESTS

type NewUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RESPONSES

type ErrResponse struct {
	Error string `json:"error"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}

// FileResponse is the public view of an entry, the local path stays inside
type FileResponse struct {
	Id       string           `json:"id"`
	UserId   string           `json:"userId"`
	Name     string           `json:"name"`
	Type     models.FileType  `json:"type"`
	IsPublic bool             `json:"isPublic"`
	ParentId models.ParentRef `json:"parentId"`
}

type StatusResponse struct {
	Redis bool `json:"redis"`
	DB    bool `json:"db"`
}

type StatsResponse struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{Id: u.Id.String(), Email: u.Email}
}

func newFileResponse(f *models.File) FileResponse {
	return FileResponse{
		Id:       f.Id.String(),
		UserId:   f.UserId.String(),
		Name:     f.Name,
		Type:     f.Type,
		IsPublic: f.IsPublic,
		ParentId: f.ParentId,
	}
}

func newFileListResponse(files []models.File) []FileResponse {
	out := make([]FileResponse, 0, len(files))
	for i := range files {
		out = append(out, newFileResponse(&files[i]))
	}
	return out
}
