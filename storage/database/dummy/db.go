// Package dummydb provides in-memory repository implementations; for tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/picha/core/album"
	"github.com/trezcool/picha/core/user"
)

type (
	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	albumTable struct {
		sync.RWMutex
		table map[string]*album.Album
	}

	photoTable struct {
		sync.RWMutex
		table map[string]*album.Photo
	}

	DB struct {
		user  *userTable
		album *albumTable
		photo *photoTable
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		album: &albumTable{table: make(map[string]*album.Album)},
		photo: &photoTable{table: make(map[string]*album.Photo)},
	}
	return db, nil
}
