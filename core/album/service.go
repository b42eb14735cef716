package album

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/picha/core"
)

var (
	// errors
	ErrAlbumNotFound   = errors.New("album not found")
	ErrPhotoNotFound   = errors.New("photo not found")
	ErrNameExists      = errors.New("an album with this name already exists")
	ErrPhotoNotInAlbum = errors.New("photo does not belong to this album")

	// per-file upload failures; reported in UploadResult, never as an error return
	errEmptyFile    = "file is empty"
	errFileTooLarge = "file exceeds the maximum allowed size"
	errNotAnImage   = "file is not a supported image type"

	// extensions of accepted image types, by MIME type
	imageExts = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedAlbums ...Album) error
		CreateAlbum(ctx context.Context, alb Album) (Album, error)
		// QueryAlbums applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Album.Name or Album.Description.
		// Returned albums carry PhotoCount and CoverFileKey but no Photos.
		QueryAlbums(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Album, error)
		GetAlbumByID(ctx context.Context, id string) (Album, error)
		UpdateAlbum(ctx context.Context, alb Album, isPublic *bool) (Album, error)
		SetAlbumCover(ctx context.Context, albumID, photoID string) error
		// QueryPhotoFileKeys returns the object keys of all photos in the given albums.
		QueryPhotoFileKeys(ctx context.Context, albumIDs ...string) ([]string, error)
		// DeleteAlbumsByID deletes albums; their photo rows cascade.
		DeleteAlbumsByID(ctx context.Context, ids ...string) error

		QueryPhotos(ctx context.Context, albumID string) ([]Photo, error)
		GetPhotoByID(ctx context.Context, id string) (Photo, error)
		CreatePhoto(ctx context.Context, photo Photo) (Photo, error)
		UpdatePhoto(ctx context.Context, photo Photo) (Photo, error)
		DeletePhoto(ctx context.Context, id string) error
	}

	Service interface {
		CheckUniqueness(name string, exclAlbums ...Album) error
		Create(ctx context.Context, na NewAlbum) (Album, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Album, error)
		// Get returns the album with its photos.
		Get(ctx context.Context, id string) (Album, error)
		Update(ctx context.Context, id string, ua UpdateAlbum) (Album, error)
		Delete(ctx context.Context, ids ...string) error
		SetCover(ctx context.Context, albumID, photoID string) (Album, error)

		// AddPhotos stores the uploads and returns one result per file, in order.
		AddPhotos(ctx context.Context, albumID string, uploads []Upload) ([]UploadResult, error)
		GetPhoto(ctx context.Context, id string) (Photo, error)
		UpdatePhoto(ctx context.Context, id string, up UpdatePhoto) (Photo, error)
		DeletePhoto(ctx context.Context, id string) error
	}

	service struct {
		repo   Repository
		store  core.FileStore
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, store core.FileStore, logger core.Logger) Service {
	return &service{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

func (svc *service) CheckUniqueness(name string, exclAlbums ...Album) error {
	if err := svc.repo.CheckNameUniqueness(context.Background(), name, exclAlbums...); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, na NewAlbum) (Album, error) {
	now := time.Now().UTC()
	public := true
	if na.IsPublic != nil {
		public = *na.IsPublic
	}
	alb := Album{
		Name:        na.Name,
		Description: na.Description,
		IsPublic:    &public,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	alb, err := svc.repo.CreateAlbum(ctx, alb)
	if err != nil {
		return Album{}, err
	}
	svc.decorateAlbum(&alb)
	return alb, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Album, error) {
	albums, err := svc.repo.QueryAlbums(ctx, filter, ordering...)
	if err != nil {
		return nil, err
	}
	for i := range albums {
		svc.decorateAlbum(&albums[i])
	}
	return albums, nil
}

func (svc *service) Get(ctx context.Context, id string) (Album, error) {
	alb, err := svc.repo.GetAlbumByID(ctx, id)
	if err != nil {
		return Album{}, err
	}
	photos, err := svc.repo.QueryPhotos(ctx, id)
	if err != nil {
		return Album{}, errors.Wrap(err, "querying album photos")
	}
	alb.Photos = photos
	svc.decorateAlbum(&alb)
	return alb, nil
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAlbum) (Album, error) {
	alb := Album{
		ID:        id,
		Name:      ua.Name,
		UpdatedAt: time.Now().UTC(),
	}
	if ua.Description != nil {
		alb.Description = *ua.Description
	}
	alb, err := svc.repo.UpdateAlbum(ctx, alb, ua.IsPublic)
	if err != nil {
		return Album{}, err
	}
	svc.decorateAlbum(&alb)
	return alb, nil
}

// Delete removes the albums, their photos (DB cascade) and the stored objects.
// The DB is the source of truth: object-store failures are logged, not surfaced.
func (svc *service) Delete(ctx context.Context, ids ...string) error {
	keys, err := svc.repo.QueryPhotoFileKeys(ctx, ids...)
	if err != nil {
		return errors.Wrap(err, "querying photo file keys")
	}
	if err := svc.repo.DeleteAlbumsByID(ctx, ids...); err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := svc.store.Delete(ctx, keys...); err != nil {
			svc.logger.Error(fmt.Sprintf("deleting album objects: %v", err), err)
		}
	}
	return nil
}

func (svc *service) SetCover(ctx context.Context, albumID, photoID string) (Album, error) {
	photo, err := svc.repo.GetPhotoByID(ctx, photoID)
	if err != nil {
		return Album{}, err
	}
	if photo.AlbumID != albumID {
		return Album{}, core.NewValidationError(ErrPhotoNotInAlbum, core.FieldError{Field: "photo_id", Error: ErrPhotoNotInAlbum.Error()})
	}
	if err := svc.repo.SetAlbumCover(ctx, albumID, photoID); err != nil {
		return Album{}, err
	}
	return svc.Get(ctx, albumID)
}

func (svc *service) AddPhotos(ctx context.Context, albumID string, uploads []Upload) ([]UploadResult, error) {
	alb, err := svc.repo.GetAlbumByID(ctx, albumID)
	if err != nil {
		return nil, err
	}

	results := make([]UploadResult, 0, len(uploads))
	for _, up := range uploads {
		res := UploadResult{Filename: up.Filename, Status: UploadStatusSuccess}
		if photo, errMsg := svc.addPhoto(ctx, alb, up); errMsg != "" {
			res.Status = UploadStatusError
			res.Error = errMsg
		} else {
			res.Photo = &photo
		}
		results = append(results, res)
	}
	return results, nil
}

// addPhoto validates, stores and records one uploaded file.
// A non-empty return message means the file was rejected; other files are unaffected.
func (svc *service) addPhoto(ctx context.Context, alb Album, up Upload) (Photo, string) {
	if len(up.Content) == 0 {
		return Photo{}, errEmptyFile
	}
	if max := core.Conf.Storage.MaxUploadSize; max > 0 && int64(len(up.Content)) > max {
		return Photo{}, errFileTooLarge
	}

	// detect the real content type from the bytes; the client's claim is not trusted
	mtype := mimetype.Detect(up.Content)
	ext, ok := imageExts[mtype.String()]
	if !ok {
		return Photo{}, errNotAnImage
	}

	key := fmt.Sprintf("albums/%s/%s%s", alb.ID, uuid.New().String(), ext)
	if err := svc.store.Upload(ctx, key, mtype.String(), bytes.NewReader(up.Content)); err != nil {
		svc.logger.Error(fmt.Sprintf("uploading photo: %v", err), err)
		return Photo{}, "upload failed"
	}

	now := time.Now().UTC()
	photo := Photo{
		AlbumID:     alb.ID,
		FileKey:     key,
		ContentType: mtype.String(),
		Size:        int64(len(up.Content)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	photo, err := svc.repo.CreatePhoto(ctx, photo)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("recording photo: %v", err), err)
		// the DB is the source of truth; drop the orphaned object
		if derr := svc.store.Delete(ctx, key); derr != nil {
			svc.logger.Error(fmt.Sprintf("deleting orphaned object: %v", derr), derr)
		}
		return Photo{}, "upload failed"
	}
	svc.decoratePhoto(&photo)
	return photo, ""
}

func (svc *service) GetPhoto(ctx context.Context, id string) (Photo, error) {
	photo, err := svc.repo.GetPhotoByID(ctx, id)
	if err != nil {
		return Photo{}, err
	}
	svc.decoratePhoto(&photo)
	return photo, nil
}

func (svc *service) UpdatePhoto(ctx context.Context, id string, up UpdatePhoto) (Photo, error) {
	photo, err := svc.repo.GetPhotoByID(ctx, id)
	if err != nil {
		return Photo{}, err
	}
	if up.Caption != nil {
		photo.Caption = *up.Caption
	}
	if up.Position != nil {
		photo.Position = *up.Position
	}
	photo.UpdatedAt = time.Now().UTC()

	photo, err = svc.repo.UpdatePhoto(ctx, photo)
	if err != nil {
		return Photo{}, err
	}
	svc.decoratePhoto(&photo)
	return photo, nil
}

// DeletePhoto removes the photo row and its stored object.
// A cover referencing it is cleared by the DB.
func (svc *service) DeletePhoto(ctx context.Context, id string) error {
	photo, err := svc.repo.GetPhotoByID(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeletePhoto(ctx, id); err != nil {
		return err
	}
	if err := svc.store.Delete(ctx, photo.FileKey); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting photo object: %v", err), err)
	}
	return nil
}

func (svc *service) decorateAlbum(alb *Album) {
	if alb.CoverFileKey != "" {
		alb.CoverURL = svc.store.PublicURL(alb.CoverFileKey)
	}
	for i := range alb.Photos {
		svc.decoratePhoto(&alb.Photos[i])
	}
}

func (svc *service) decoratePhoto(photo *Photo) {
	photo.FileURL = svc.store.PublicURL(photo.FileKey)
}
