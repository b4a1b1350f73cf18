package models

import "time"

// FileStatus tracks the lifecycle of an uploaded file.
type FileStatus string

const (
	FileStatusActive   FileStatus = "active"
	FileStatusInactive FileStatus = "inactive"
	FileStatusArchived FileStatus = "archived"
	FileStatusDraft    FileStatus = "draft"
)

// File represents an uploaded artifact stored in the files table. The blob
// itself lives in the configured object store; FileURL is its key.
//
// StartDate/EndDate only matter when IsPermanent is false: the file is
// published from StartDate through the end of EndDate's calendar day.
// DeletedAt marks a soft delete; rows are never hard-deleted.
type File struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	FileURL     string     `db:"file_url" json:"file_url"`
	FileType    *string    `db:"file_type" json:"file_type,omitempty"`
	FileSize    *int64     `db:"file_size" json:"file_size,omitempty"`
	Status      FileStatus `db:"status" json:"status"`
	IsPermanent bool       `db:"is_permanent" json:"is_permanent"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	UploadedBy  string     `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
