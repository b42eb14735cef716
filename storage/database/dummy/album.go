package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/picha/core"
	"github.com/trezcool/picha/core/album"
)

type albumRepository struct {
	albums *albumTable
	photos *photoTable
}

var _ album.Repository = (*albumRepository)(nil) // interface compliance check

func NewAlbumRepository(db *DB) album.Repository {
	return &albumRepository{albums: db.album, photos: db.photo}
}

func (repo *albumRepository) queryAlbums() []album.Album {
	albums := make([]album.Album, 0, len(repo.albums.table))
	for _, a := range repo.albums.table {
		albums = append(albums, *a)
	}
	return albums
}

func (repo *albumRepository) queryAlbumPhotos(albumID string) []album.Photo {
	var photos []album.Photo
	for _, p := range repo.photos.table {
		if p.AlbumID == albumID {
			photos = append(photos, *p)
		}
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].Position != photos[j].Position {
			return photos[i].Position < photos[j].Position
		}
		return photos[i].CreatedAt.Before(photos[j].CreatedAt)
	})
	return photos
}

// derive fills the read-only PhotoCount and CoverFileKey fields.
func (repo *albumRepository) derive(alb *album.Album) {
	photos := repo.queryAlbumPhotos(alb.ID)
	alb.PhotoCount = len(photos)
	alb.CoverFileKey = ""
	if alb.CoverPhotoID != "" {
		if p, ok := repo.photos.table[alb.CoverPhotoID]; ok {
			alb.CoverFileKey = p.FileKey
			return
		}
	}
	var latest album.Photo
	for _, p := range photos {
		if latest.ID == "" || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	alb.CoverFileKey = latest.FileKey
}

func (repo *albumRepository) CheckNameUniqueness(_ context.Context, name string, excludedAlbums ...album.Album) error {
	repo.albums.RLock()
	defer repo.albums.RUnlock()

	excluded := make(map[string]bool, len(excludedAlbums))
	for _, a := range excludedAlbums {
		excluded[a.ID] = true
	}

	for _, alb := range repo.queryAlbums() {
		if excluded[alb.ID] {
			continue
		}
		if strings.EqualFold(alb.Name, name) {
			return album.ErrNameExists
		}
	}
	return nil
}

func (repo *albumRepository) CreateAlbum(_ context.Context, alb album.Album) (album.Album, error) {
	repo.albums.Lock()
	defer repo.albums.Unlock()

	alb.ID = uuid.New().String()
	repo.albums.table[alb.ID] = &alb
	return alb, nil
}

func (repo *albumRepository) QueryAlbums(_ context.Context, filter *album.QueryFilter, ordering ...core.DBOrdering) ([]album.Album, error) {
	repo.albums.RLock()
	defer repo.albums.RUnlock()
	repo.photos.RLock()
	defer repo.photos.RUnlock()

	albums := repo.queryAlbums()

	if filter != nil {
		// albums with search keyword matching Name or Description
		if filter.Search != "" {
			var filtered []album.Album
			search := strings.ToLower(filter.Search)
			for _, a := range albums {
				if strings.Contains(strings.ToLower(a.Name), search) ||
					strings.Contains(strings.ToLower(a.Description), search) {
					filtered = append(filtered, a)
				}
			}
			albums = filtered
		}
		if albums != nil && filter.IsPublic != nil {
			var filtered []album.Album
			for _, a := range albums {
				if a.Public() == *filter.IsPublic {
					filtered = append(filtered, a)
				}
			}
			albums = filtered
		}
		if albums != nil && !filter.CreatedFrom.IsZero() {
			var filtered []album.Album
			timeUTC := filter.CreatedFrom.UTC()
			for _, a := range albums {
				if a.CreatedAt.Equal(timeUTC) || a.CreatedAt.After(timeUTC) {
					filtered = append(filtered, a)
				}
			}
			albums = filtered
		}
		if albums != nil && !filter.CreatedTo.IsZero() {
			var filtered []album.Album
			timeUTC := filter.CreatedTo.UTC()
			for _, a := range albums {
				if a.CreatedAt.Before(timeUTC) || a.CreatedAt.Equal(timeUTC) {
					filtered = append(filtered, a)
				}
			}
			albums = filtered
		}
	}

	for i := range albums {
		repo.derive(&albums[i])
	}
	sortAlbums(albums, ordering)
	return albums, nil
}

func (repo *albumRepository) GetAlbumByID(_ context.Context, id string) (album.Album, error) {
	repo.albums.RLock()
	defer repo.albums.RUnlock()
	repo.photos.RLock()
	defer repo.photos.RUnlock()

	if alb, ok := repo.albums.table[id]; ok {
		a := *alb
		repo.derive(&a)
		return a, nil
	}
	return album.Album{}, album.ErrAlbumNotFound
}

func (repo *albumRepository) UpdateAlbum(_ context.Context, alb album.Album, isPublic *bool) (album.Album, error) {
	repo.albums.Lock()
	defer repo.albums.Unlock()
	repo.photos.RLock()
	defer repo.photos.RUnlock()

	origAlb, ok := repo.albums.table[alb.ID]
	if !ok {
		return album.Album{}, album.ErrAlbumNotFound
	}
	if alb.Name != "" {
		origAlb.Name = alb.Name
	}
	origAlb.Description = alb.Description
	if isPublic != nil {
		origAlb.IsPublic = isPublic
	}
	origAlb.UpdatedAt = alb.UpdatedAt

	repo.albums.table[alb.ID] = origAlb
	a := *origAlb
	repo.derive(&a)
	return a, nil
}

func (repo *albumRepository) SetAlbumCover(_ context.Context, albumID, photoID string) error {
	repo.albums.Lock()
	defer repo.albums.Unlock()

	alb, ok := repo.albums.table[albumID]
	if !ok {
		return album.ErrAlbumNotFound
	}
	alb.CoverPhotoID = photoID
	return nil
}

func (repo *albumRepository) QueryPhotoFileKeys(_ context.Context, albumIDs ...string) ([]string, error) {
	repo.photos.RLock()
	defer repo.photos.RUnlock()

	var keys []string
	for _, id := range albumIDs {
		for _, p := range repo.queryAlbumPhotos(id) {
			keys = append(keys, p.FileKey)
		}
	}
	return keys, nil
}

func (repo *albumRepository) DeleteAlbumsByID(_ context.Context, ids ...string) error {
	repo.albums.Lock()
	defer repo.albums.Unlock()
	repo.photos.Lock()
	defer repo.photos.Unlock()

	for _, id := range ids {
		delete(repo.albums.table, id)
		// photo rows cascade
		for pid, p := range repo.photos.table {
			if p.AlbumID == id {
				delete(repo.photos.table, pid)
			}
		}
	}
	return nil
}

func (repo *albumRepository) QueryPhotos(_ context.Context, albumID string) ([]album.Photo, error) {
	repo.photos.RLock()
	defer repo.photos.RUnlock()
	return repo.queryAlbumPhotos(albumID), nil
}

func (repo *albumRepository) GetPhotoByID(_ context.Context, id string) (album.Photo, error) {
	repo.photos.RLock()
	defer repo.photos.RUnlock()

	if p, ok := repo.photos.table[id]; ok {
		return *p, nil
	}
	return album.Photo{}, album.ErrPhotoNotFound
}

func (repo *albumRepository) CreatePhoto(_ context.Context, photo album.Photo) (album.Photo, error) {
	repo.photos.Lock()
	defer repo.photos.Unlock()

	photo.ID = uuid.New().String()
	var maxPos int
	var any bool
	for _, p := range repo.photos.table {
		if p.AlbumID == photo.AlbumID {
			any = true
			if p.Position > maxPos {
				maxPos = p.Position
			}
		}
	}
	if any {
		photo.Position = maxPos + 1
	}
	repo.photos.table[photo.ID] = &photo
	return photo, nil
}

func (repo *albumRepository) UpdatePhoto(_ context.Context, photo album.Photo) (album.Photo, error) {
	repo.photos.Lock()
	defer repo.photos.Unlock()

	origPhoto, ok := repo.photos.table[photo.ID]
	if !ok {
		return album.Photo{}, album.ErrPhotoNotFound
	}
	origPhoto.Caption = photo.Caption
	origPhoto.Position = photo.Position
	origPhoto.UpdatedAt = photo.UpdatedAt

	repo.photos.table[photo.ID] = origPhoto
	return *origPhoto, nil
}

func (repo *albumRepository) DeletePhoto(_ context.Context, id string) error {
	repo.photos.Lock()
	defer repo.photos.Unlock()
	repo.albums.Lock()
	defer repo.albums.Unlock()

	photo, ok := repo.photos.table[id]
	if !ok {
		return album.ErrPhotoNotFound
	}
	delete(repo.photos.table, id)
	// a cover referencing this photo is cleared
	if alb, ok := repo.albums.table[photo.AlbumID]; ok && alb.CoverPhotoID == id {
		alb.CoverPhotoID = ""
	}
	return nil
}

func sortAlbums(albums []album.Album, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		sort.Slice(albums, func(i, j int) bool { return albums[i].CreatedAt.After(albums[j].CreatedAt) })
		return
	}
	ord := ordering[0]
	sort.Slice(albums, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "name":
			less = albums[i].Name < albums[j].Name
		default:
			less = albums[i].CreatedAt.Before(albums[j].CreatedAt)
		}
		if !ord.Ascending {
			return !less
		}
		return less
	})
}
