package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/picha/core"
	"github.com/trezcool/picha/core/album"
)

type albumRepository struct {
	db *sqlx.DB
}

var _ album.Repository = (*albumRepository)(nil) // interface compliance check

func NewAlbumRepository(db *sql.DB) *albumRepository {
	return &albumRepository{db: sqlx.NewDb(db, "postgres")}
}

// albumCols selects album rows along with their derived read-only columns.
const albumCols = `
	a.id, a.name, a.description, a.is_public, a.cover_photo_id, a.created_at, a.updated_at,
	(SELECT COUNT(*) FROM photo p WHERE p.album_id = a.id) AS photo_count,
	COALESCE(
		(SELECT p.file_key FROM photo p WHERE p.id = a.cover_photo_id),
		(SELECT p.file_key FROM photo p WHERE p.album_id = a.id ORDER BY p.created_at DESC, p.id LIMIT 1),
		''
	) AS cover_file_key`

// dbAlbum mirrors the album table plus the derived columns of albumCols.
type dbAlbum struct {
	ID           string      `db:"id"`
	Name         null.String `db:"name"`
	Description  null.String `db:"description"`
	IsPublic     null.Bool   `db:"is_public"`
	CoverPhotoID null.String `db:"cover_photo_id"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	PhotoCount   int         `db:"photo_count"`
	CoverFileKey string      `db:"cover_file_key"`
}

// dbPhoto mirrors the photo table.
type dbPhoto struct {
	ID          string      `db:"id"`
	AlbumID     string      `db:"album_id"`
	FileKey     string      `db:"file_key"`
	Caption     null.String `db:"caption"`
	ContentType null.String `db:"content_type"`
	Size        int64       `db:"size"`
	Position    int         `db:"position"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo albumRepository) unpackAlbum(alb *dbAlbum) album.Album {
	if alb == nil {
		return album.Album{}
	}
	return album.Album{
		ID:           alb.ID,
		Name:         alb.Name.String,
		Description:  alb.Description.String,
		IsPublic:     alb.IsPublic.Ptr(),
		CoverPhotoID: alb.CoverPhotoID.String,
		CreatedAt:    alb.CreatedAt.Time,
		UpdatedAt:    alb.UpdatedAt.Time,
		PhotoCount:   alb.PhotoCount,
		CoverFileKey: alb.CoverFileKey,
	}
}

func (repo albumRepository) unpackPhoto(photo *dbPhoto) album.Photo {
	if photo == nil {
		return album.Photo{}
	}
	return album.Photo{
		ID:          photo.ID,
		AlbumID:     photo.AlbumID,
		FileKey:     photo.FileKey,
		Caption:     photo.Caption.String,
		ContentType: photo.ContentType.String,
		Size:        photo.Size,
		Position:    photo.Position,
		CreatedAt:   photo.CreatedAt.Time,
		UpdatedAt:   photo.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to the given not-found error
func (repo albumRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo albumRepository) CheckNameUniqueness(ctx context.Context, name string, excludedAlbums ...album.Album) error {
	query := `SELECT EXISTS (SELECT 1 FROM album WHERE LOWER(name) = LOWER($1)`
	args := []interface{}{name}
	if len(excludedAlbums) > 0 {
		ids := make([]string, 0, len(excludedAlbums))
		for _, a := range excludedAlbums {
			ids = append(ids, a.ID)
		}
		query += ` AND NOT (id = ANY($2))`
		args = append(args, pq.Array(ids))
	}
	query += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, args...); err != nil {
		return errors.Wrap(err, "checking album uniqueness")
	}
	if exists {
		return album.ErrNameExists
	}
	return nil
}

func (repo albumRepository) CreateAlbum(ctx context.Context, alb album.Album) (album.Album, error) {
	alb.ID = uuid.New().String()
	query := `
		INSERT INTO album (id, name, description, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query,
		alb.ID, alb.Name, alb.Description, alb.Public(), alb.CreatedAt.UTC(), alb.UpdatedAt.UTC())
	if err != nil {
		return album.Album{}, errors.Wrap(err, "inserting album")
	}
	return repo.GetAlbumByID(ctx, alb.ID)
}

func (repo albumRepository) QueryAlbums(ctx context.Context, filter *album.QueryFilter, ordering ...core.DBOrdering) ([]album.Album, error) {
	query := `SELECT` + albumCols + ` FROM album a`
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// albums with Name or Description matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			p := arg(val)
			conds = append(conds, fmt.Sprintf("(a.name ILIKE %s OR a.description ILIKE %s)", p, p))
		}
		if filter.IsPublic != nil {
			conds = append(conds, "a.is_public = "+arg(*filter.IsPublic))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "a.created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "a.created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderingClause(ordering, "a.created_at DESC")

	var rows []dbAlbum
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying albums")
	}
	albums := make([]album.Album, 0, len(rows))
	for i := range rows {
		albums = append(albums, repo.unpackAlbum(&rows[i]))
	}
	return albums, nil
}

func (repo albumRepository) GetAlbumByID(ctx context.Context, id string) (album.Album, error) {
	if _, err := uuid.Parse(id); err != nil {
		return album.Album{}, album.ErrAlbumNotFound
	}
	var alb dbAlbum
	query := `SELECT` + albumCols + ` FROM album a WHERE a.id = $1`
	if err := repo.db.GetContext(ctx, &alb, query, id); err != nil {
		return album.Album{}, repo.trapNoRowsErr(err, album.ErrAlbumNotFound, "finding album by ID")
	}
	return repo.unpackAlbum(&alb), nil
}

func (repo albumRepository) UpdateAlbum(ctx context.Context, alb album.Album, isPublic *bool) (album.Album, error) {
	var sets []string
	var args []interface{}

	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if alb.Name != "" {
		set("name", alb.Name)
	}
	set("description", alb.Description)
	if isPublic != nil {
		set("is_public", *isPublic)
	}
	if alb.UpdatedAt.IsZero() {
		alb.UpdatedAt = nowUTC()
	}
	set("updated_at", alb.UpdatedAt.UTC())

	args = append(args, alb.ID)
	query := fmt.Sprintf(`UPDATE album SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return album.Album{}, errors.Wrap(err, "updating album")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return album.Album{}, album.ErrAlbumNotFound
	}
	return repo.GetAlbumByID(ctx, alb.ID)
}

func (repo albumRepository) SetAlbumCover(ctx context.Context, albumID, photoID string) error {
	query := `UPDATE album SET cover_photo_id = NULLIF($2, ''), updated_at = $3 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, albumID, photoID, nowUTC())
	if err != nil {
		return errors.Wrap(err, "setting album cover")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return album.ErrAlbumNotFound
	}
	return nil
}

func (repo albumRepository) QueryPhotoFileKeys(ctx context.Context, albumIDs ...string) ([]string, error) {
	var keys []string
	query := `SELECT file_key FROM photo WHERE album_id = ANY($1)`
	if err := repo.db.SelectContext(ctx, &keys, query, pq.Array(albumIDs)); err != nil {
		return nil, errors.Wrap(err, "querying photo file keys")
	}
	return keys, nil
}

func (repo albumRepository) DeleteAlbumsByID(ctx context.Context, ids ...string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM album WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting albums")
	}
	return nil
}

func (repo albumRepository) QueryPhotos(ctx context.Context, albumID string) ([]album.Photo, error) {
	var rows []dbPhoto
	query := `SELECT * FROM photo WHERE album_id = $1 ORDER BY position, created_at, id`
	if err := repo.db.SelectContext(ctx, &rows, query, albumID); err != nil {
		return nil, errors.Wrap(err, "querying photos")
	}
	photos := make([]album.Photo, 0, len(rows))
	for i := range rows {
		photos = append(photos, repo.unpackPhoto(&rows[i]))
	}
	return photos, nil
}

func (repo albumRepository) GetPhotoByID(ctx context.Context, id string) (album.Photo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return album.Photo{}, album.ErrPhotoNotFound
	}
	var photo dbPhoto
	if err := repo.db.GetContext(ctx, &photo, `SELECT * FROM photo WHERE id = $1`, id); err != nil {
		return album.Photo{}, repo.trapNoRowsErr(err, album.ErrPhotoNotFound, "finding photo by ID")
	}
	return repo.unpackPhoto(&photo), nil
}

func (repo albumRepository) CreatePhoto(ctx context.Context, photo album.Photo) (album.Photo, error) {
	photo.ID = uuid.New().String()
	query := `
		INSERT INTO photo (id, album_id, file_key, caption, content_type, size, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM photo WHERE album_id = $2), $7, $8)
		RETURNING *`
	var row dbPhoto
	err := repo.db.GetContext(ctx, &row, query,
		photo.ID, photo.AlbumID, photo.FileKey, photo.Caption, photo.ContentType, photo.Size,
		photo.CreatedAt.UTC(), photo.UpdatedAt.UTC())
	if err != nil {
		return album.Photo{}, errors.Wrap(err, "inserting photo")
	}
	return repo.unpackPhoto(&row), nil
}

func (repo albumRepository) UpdatePhoto(ctx context.Context, photo album.Photo) (album.Photo, error) {
	query := `
		UPDATE photo SET caption = $2, position = $3, updated_at = $4
		WHERE id = $1
		RETURNING *`
	var row dbPhoto
	err := repo.db.GetContext(ctx, &row, query, photo.ID, photo.Caption, photo.Position, photo.UpdatedAt.UTC())
	if err != nil {
		return album.Photo{}, repo.trapNoRowsErr(err, album.ErrPhotoNotFound, "updating photo")
	}
	return repo.unpackPhoto(&row), nil
}

func (repo albumRepository) DeletePhoto(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM photo WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting photo")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return album.ErrPhotoNotFound
	}
	return nil
}
