package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/picha/core/album"
	"github.com/trezcool/picha/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAlbum(
	t *testing.T,
	repo album.Repository,
	name, description string,
	isPublic bool,
	createdAt ...time.Time,
) album.Album {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	alb := album.Album{
		Name:        name,
		Description: description,
		IsPublic:    &isPublic,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	alb, err := repo.CreateAlbum(context.Background(), alb)
	if err != nil {
		t.Fatalf("CreateAlbum() failed: %v", err)
	}
	return alb
}

func CreatePhoto(
	t *testing.T,
	repo album.Repository,
	albumID, fileKey, caption string,
	createdAt ...time.Time,
) album.Photo {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	photo := album.Photo{
		AlbumID:     albumID,
		FileKey:     fileKey,
		Caption:     caption,
		ContentType: "image/jpeg",
		Size:        1024,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	photo, err := repo.CreatePhoto(context.Background(), photo)
	if err != nil {
		t.Fatalf("CreatePhoto() failed: %v", err)
	}
	return photo
}
