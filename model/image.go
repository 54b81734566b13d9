package model

import "time"

// Image is the metadata record appended for every uploaded image, alongside
// the binary stored in the object store.
type Image struct {
	Id          string    `gorm:"primaryKey" json:"id"`
	FilePath    string    `json:"filePath"`
	PublicUrl   string    `json:"publicUrl"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadDate  time.Time `json:"uploadDate"`
}
