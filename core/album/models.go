package album

import (
	"time"

	"github.com/trezcool/picha/core"
)

// Album is a collection of photos shown in the public gallery.
type Album struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsPublic     *bool     `json:"is_public"`
	CoverPhotoID string    `json:"cover_photo_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC

	// derived on read
	PhotoCount   int     `json:"photo_count"`
	CoverFileKey string  `json:"-"` // cover's object key; most recent photo's when no cover is set
	CoverURL     string  `json:"cover_url"`
	Photos       []Photo `json:"photos,omitempty"` // populated on detail reads
}

// Public reports whether the album is visible to unauthenticated visitors.
func (a *Album) Public() bool {
	return a.IsPublic == nil || *a.IsPublic
}

// HasPhoto reports whether the photo with the given ID belongs to this Album.
// Only meaningful when Photos is populated.
func (a *Album) HasPhoto(photoID string) bool {
	for _, p := range a.Photos {
		if p.ID == photoID {
			return true
		}
	}
	return false
}

// Photo is a single gallery image; its bytes live in the FileStore under FileKey.
type Photo struct {
	ID          string    `json:"id"`
	AlbumID     string    `json:"album_id"`
	FileKey     string    `json:"-"`
	FileURL     string    `json:"file_url"`
	Caption     string    `json:"caption"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewAlbum contains information needed to create a new Album.
type NewAlbum struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	IsPublic    *bool  `json:"is_public"`
}

func (na *NewAlbum) Validate(svc Service) error {
	na.Name = core.CleanString(na.Name)
	na.Description = core.CleanString(na.Description)

	if err := core.Validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(na.Name)
}

// UpdateAlbum defines what information may be provided to modify an existing Album.
type UpdateAlbum struct {
	Name        string  `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsPublic    *bool   `json:"is_public"`
}

func (ua *UpdateAlbum) Validate(origAlb Album, svc Service) error {
	name := core.CleanString(ua.Name)
	if name != "" {
		ua.Name = name
	} else {
		ua.Name = origAlb.Name
	}

	if ua.Description != nil {
		desc := core.CleanString(*ua.Description)
		ua.Description = &desc
	}

	if err := core.Validate.Struct(ua); err != nil {
		return err
	}
	return svc.CheckUniqueness(ua.Name, origAlb)
}

// UpdatePhoto defines what information may be provided to modify an existing Photo.
// Nil fields are left untouched; an empty Caption clears it.
type UpdatePhoto struct {
	Caption  *string `json:"caption" validate:"omitempty,max=1000"`
	Position *int    `json:"position" validate:"omitempty,min=0"`
}

func (up *UpdatePhoto) Validate() error {
	if up.Caption != nil {
		caption := core.CleanString(*up.Caption)
		up.Caption = &caption
	}
	return core.Validate.Struct(up)
}

// SetCover identifies the Photo to use as an Album's cover image.
type SetCover struct {
	PhotoID string `json:"photo_id" validate:"required"`
}

func (sc *SetCover) Validate() error {
	sc.PhotoID = core.CleanString(sc.PhotoID)
	return core.Validate.Struct(sc)
}

// Upload is a single file submitted to AddPhotos.
type Upload struct {
	Filename string
	Size     int64
	Content  []byte
}

// Upload statuses; one per file, a failed file never fails the batch.
const (
	UploadStatusSuccess = "success"
	UploadStatusError   = "error"
)

// UploadResult reports the outcome of storing one uploaded file.
type UploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Photo    *Photo `json:"photo,omitempty"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	IsPublic    *bool     `query:"is_public"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.IsPublic == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
