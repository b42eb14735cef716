package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/picha/core/album"
	"github.com/trezcool/picha/core/user"
	testutil "github.com/trezcool/picha/tests"
)

// image magic bytes; enough for content type sniffing
var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 64)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 64)...)
)

func Test_albumApi_query(t *testing.T) {
	app := setup(t)

	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	visitor := testutil.CreateUser(t, usrRepo, "Visitor", "visitor", "visitor@test.cd", "", nil, true)
	editorToken := getToken(t, editor)
	visitorToken := getToken(t, visitor)

	pub1 := testutil.CreateAlbum(t, albRepo, "Sports Day", "Annual games", true)
	pub2 := testutil.CreateAlbum(t, albRepo, "Graduation", "Class of 2026", true)
	priv := testutil.CreateAlbum(t, albRepo, "Staff Retreat", "", false)

	listNames := func(t *testing.T, body []byte) []string {
		var albums []album.Album
		require.NoError(t, json.Unmarshal(body, &albums))
		names := make([]string, 0, len(albums))
		for _, a := range albums {
			names = append(names, a.Name)
		}
		return names
	}

	t.Run("visitors only see public albums", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/albums")
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.ElementsMatch(t, []string{pub1.Name, pub2.Name}, listNames(t, rec.Body.Bytes()))
	})

	t.Run("authed non-staff only see public albums", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/albums", visitorToken)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.ElementsMatch(t, []string{pub1.Name, pub2.Name}, listNames(t, rec.Body.Bytes()))
	})

	t.Run("staff see all albums", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/albums", editorToken)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.ElementsMatch(t, []string{pub1.Name, pub2.Name, priv.Name}, listNames(t, rec.Body.Bytes()))
	})

	t.Run("staff can filter private albums", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/albums?is_public=false", editorToken)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.ElementsMatch(t, []string{priv.Name}, listNames(t, rec.Body.Bytes()))
	})

	t.Run("search matches name", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/albums?search=grad")
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.ElementsMatch(t, []string{pub2.Name}, listNames(t, rec.Body.Bytes()))
	})
}

func Test_albumApi_retrieve(t *testing.T) {
	app := setup(t)

	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	editorToken := getToken(t, editor)

	pub := testutil.CreateAlbum(t, albRepo, "Sports Day", "", true)
	priv := testutil.CreateAlbum(t, albRepo, "Staff Retreat", "", false)
	photo := testutil.CreatePhoto(t, albRepo, pub.ID, "albums/"+pub.ID+"/a.jpg", "The big race")

	t.Run("public album detail includes photos", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/albums/"+pub.ID)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var alb album.Album
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alb))
		assert.Equal(t, 1, alb.PhotoCount)
		require.Len(t, alb.Photos, 1)
		assert.Equal(t, photo.ID, alb.Photos[0].ID)
		assert.Equal(t, "http://cdn.test/albums/"+pub.ID+"/a.jpg", alb.Photos[0].FileURL)
		// no cover set; falls back to the latest photo
		assert.Equal(t, "http://cdn.test/albums/"+pub.ID+"/a.jpg", alb.CoverURL)
	})

	t.Run("private album hidden from visitors", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/albums/"+priv.ID)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("private album visible to staff", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/albums/"+priv.ID, editorToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("unknown album", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/albums/lol")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}

func Test_albumApi_createUpdate(t *testing.T) {
	app := setup(t)

	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	visitor := testutil.CreateUser(t, usrRepo, "Visitor", "visitor", "visitor@test.cd", "", nil, true)
	editorToken := getToken(t, editor)
	visitorToken := getToken(t, visitor)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/albums", marchallObj(t, album.NewAlbum{Name: "Lol"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("staff required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/albums", visitorToken, marchallObj(t, album.NewAlbum{Name: "Lol"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("name required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/albums", editorToken, marchallObj(t, album.NewAlbum{}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "name is a required field"}),
		}, rec)
	})

	var created album.Album
	t.Run("create ok, public by default", func(t *testing.T) {
		body := marchallObj(t, album.NewAlbum{Name: "Science Fair", Description: "Projects on display"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/albums", editorToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.True(t, created.Public())
		assert.Zero(t, created.PhotoCount)
	})

	t.Run("duplicate name fails", func(t *testing.T) {
		body := marchallObj(t, album.NewAlbum{Name: "science fair"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/albums", editorToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": album.ErrNameExists.Error()}),
		}, rec)
	})

	t.Run("update name and visibility", func(t *testing.T) {
		private := false
		body := marchallObj(t, album.UpdateAlbum{Name: "Science Fair 2026", IsPublic: &private})
		req, rec := newAuthRequest(http.MethodPut, "/v1/albums/"+created.ID, editorToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var alb album.Album
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alb))
		assert.Equal(t, "Science Fair 2026", alb.Name)
		assert.False(t, alb.Public())
	})

	t.Run("update unknown album", func(t *testing.T) {
		body := marchallObj(t, album.UpdateAlbum{Name: "Lol"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/albums/lol", editorToken, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}

func Test_albumApi_addPhotos(t *testing.T) {
	app := setup(t)

	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	editorToken := getToken(t, editor)

	alb := testutil.CreateAlbum(t, albRepo, "Sports Day", "", true)

	t.Run("mixed batch gets per-file results", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/albums/"+alb.ID+"/photos", editorToken,
			uploadFile{name: "race.png", content: pngBytes},
			uploadFile{name: "empty.png", content: nil},
			uploadFile{name: "notes.txt", content: []byte("not an image at all")},
			uploadFile{name: "podium.jpg", content: jpegBytes},
		)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var results []album.UploadResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
		require.Len(t, results, 4)

		assert.Equal(t, album.UploadStatusSuccess, results[0].Status)
		require.NotNil(t, results[0].Photo)
		assert.Equal(t, "image/png", results[0].Photo.ContentType)
		assert.Equal(t, 0, results[0].Photo.Position)

		assert.Equal(t, album.UploadStatusError, results[1].Status)
		assert.Equal(t, "file is empty", results[1].Error)
		assert.Nil(t, results[1].Photo)

		assert.Equal(t, album.UploadStatusError, results[2].Status)
		assert.Equal(t, "file is not a supported image type", results[2].Error)

		assert.Equal(t, album.UploadStatusSuccess, results[3].Status)
		require.NotNil(t, results[3].Photo)
		assert.Equal(t, "image/jpeg", results[3].Photo.ContentType)
		assert.Equal(t, 1, results[3].Photo.Position)

		// only the two accepted files were stored
		assert.Equal(t, 2, store.Len())
	})

	t.Run("unknown album", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/albums/lol/photos", editorToken, uploadFile{name: "a.png", content: pngBytes})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("no files", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/albums/"+alb.ID+"/photos", editorToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_albumApi_coverAndPhotos(t *testing.T) {
	app := setup(t)

	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	editorToken := getToken(t, editor)

	alb := testutil.CreateAlbum(t, albRepo, "Sports Day", "", true)
	other := testutil.CreateAlbum(t, albRepo, "Graduation", "", true)
	photo1 := testutil.CreatePhoto(t, albRepo, alb.ID, "albums/"+alb.ID+"/p1.jpg", "")
	photo2 := testutil.CreatePhoto(t, albRepo, alb.ID, "albums/"+alb.ID+"/p2.jpg", "")
	stranger := testutil.CreatePhoto(t, albRepo, other.ID, "albums/"+other.ID+"/p3.jpg", "")

	t.Run("cover must belong to the album", func(t *testing.T) {
		body := marchallObj(t, album.SetCover{PhotoID: stranger.ID})
		req, rec := newAuthRequest(http.MethodPut, "/v1/albums/"+alb.ID+"/cover", editorToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"photo_id": album.ErrPhotoNotInAlbum.Error()}),
		}, rec)
	})

	t.Run("set cover", func(t *testing.T) {
		body := marchallObj(t, album.SetCover{PhotoID: photo1.ID})
		req, rec := newAuthRequest(http.MethodPut, "/v1/albums/"+alb.ID+"/cover", editorToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated album.Album
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, photo1.ID, updated.CoverPhotoID)
		assert.Equal(t, "http://cdn.test/"+photo1.FileKey, updated.CoverURL)
	})

	t.Run("edit caption", func(t *testing.T) {
		caption := "The final lap"
		body := marchallObj(t, album.UpdatePhoto{Caption: &caption})
		req, rec := newAuthRequest(http.MethodPut, "/v1/photos/"+photo2.ID, editorToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var photo album.Photo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &photo))
		assert.Equal(t, caption, photo.Caption)
	})

	t.Run("deleting the cover photo clears the cover", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/photos/"+photo1.ID, editorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/albums/"+alb.ID, editorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var refreshed album.Album
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
		assert.Empty(t, refreshed.CoverPhotoID)
		// the cover falls back to the remaining photo
		assert.Equal(t, "http://cdn.test/"+photo2.FileKey, refreshed.CoverURL)
		assert.Equal(t, 1, refreshed.PhotoCount)
	})

	t.Run("deleting the album deletes its photos", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/albums/"+alb.ID, editorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/albums/"+alb.ID, editorToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/photos/"+photo2.ID, editorToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("bulk delete", func(t *testing.T) {
		alb1 := testutil.CreateAlbum(t, albRepo, "Bulk One", "", true)
		alb2 := testutil.CreateAlbum(t, albRepo, "Bulk Two", "", false)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/albums?id="+alb1.ID+"&id="+alb2.ID, editorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		for _, id := range []string{alb1.ID, alb2.ID} {
			req, rec = newAuthRequest(http.MethodGet, "/v1/albums/"+id, editorToken)
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		}
	})
}
