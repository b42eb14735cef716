package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/picha/core/album"
)

// uploadsField is the multipart form field holding the files to upload.
var uploadsField = "photos"

type albumApi struct {
	svc album.Service
}

func registerAlbumAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc album.Service) {
	api := albumApi{svc: svc}

	// visitor endpoints; auth is optional, staff also see private albums
	ag := g.Group("/albums", optionalAuth(jwt))
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)

	// management endpoints
	mg := g.Group("/albums", jwt, staffMiddleware())
	mg.POST("", api.create)
	mg.PUT("/:id", api.update)
	mg.DELETE("", api.destroyMultiple)
	mg.DELETE("/:id", api.destroy)
	mg.PUT("/:id/cover", api.setCover)
	mg.POST("/:id/photos", api.addPhotos)

	pg := g.Group("/photos", jwt, staffMiddleware())
	pg.GET("/:id", api.retrievePhoto)
	pg.PUT("/:id", api.updatePhoto)
	pg.DELETE("/:id", api.destroyPhoto)
}

// optionalAuth applies the JWT middleware only when credentials are supplied,
// so anonymous visitors fall through un-authed.
func optionalAuth(jwt echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if ctx.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(ctx)
			}
			return jwt(next)(ctx)
		}
	}
}

func contextIsStaff(ctx echo.Context) bool {
	claims, err := getContextClaims(ctx)
	return err == nil && claims.IsStaff()
}

// Handlers

func (api *albumApi) query(ctx echo.Context) error {
	filter := new(album.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []album.Album{})
	}
	filter.Clean()
	if !contextIsStaff(ctx) {
		// visitors only see public albums
		public := true
		filter.IsPublic = &public
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	albums, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying albums")
	}
	if albums == nil {
		albums = []album.Album{}
	}
	return ctx.JSON(http.StatusOK, albums)
}

func (api *albumApi) retrieve(ctx echo.Context) error {
	alb, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == album.ErrAlbumNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding album by ID")
	}
	if !alb.Public() && !contextIsStaff(ctx) {
		// a private album does not exist as far as visitors know
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, alb)
}

func (api *albumApi) create(ctx echo.Context) error {
	var data album.NewAlbum
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAlbum")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	alb, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating album")
	}
	return ctx.JSON(http.StatusCreated, alb)
}

func (api *albumApi) update(ctx echo.Context) error {
	alb, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == album.ErrAlbumNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding album by ID")
	}

	var data album.UpdateAlbum
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAlbum")
	}
	if err := data.Validate(alb, api.svc); err != nil {
		return err
	}

	alb, err = api.svc.Update(ctx.Request().Context(), alb.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating album")
	}
	return ctx.JSON(http.StatusOK, alb)
}

func (api *albumApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting album")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *albumApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting albums")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *albumApi) setCover(ctx echo.Context) error {
	var data album.SetCover
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetCover")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	alb, err := api.svc.SetCover(ctx.Request().Context(), ctx.Param("id"), data.PhotoID)
	if err != nil {
		return errors.Wrap(err, "setting album cover")
	}
	return ctx.JSON(http.StatusOK, alb)
}

func (api *albumApi) addPhotos(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	files := form.File[uploadsField]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files submitted")
	}

	uploads := make([]album.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return errors.Wrapf(err, "opening upload %s", fh.Filename)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return errors.Wrapf(err, "reading upload %s", fh.Filename)
		}
		uploads = append(uploads, album.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Content:  content,
		})
	}

	results, err := api.svc.AddPhotos(ctx.Request().Context(), ctx.Param("id"), uploads)
	if err != nil {
		if errors.Cause(err) == album.ErrAlbumNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding photos")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *albumApi) retrievePhoto(ctx echo.Context) error {
	photo, err := api.svc.GetPhoto(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == album.ErrPhotoNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding photo by ID")
	}
	return ctx.JSON(http.StatusOK, photo)
}

func (api *albumApi) updatePhoto(ctx echo.Context) error {
	var data album.UpdatePhoto
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePhoto")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	photo, err := api.svc.UpdatePhoto(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == album.ErrPhotoNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating photo")
	}
	return ctx.JSON(http.StatusOK, photo)
}

func (api *albumApi) destroyPhoto(ctx echo.Context) error {
	if err := api.svc.DeletePhoto(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == album.ErrPhotoNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting photo")
	}
	return ctx.NoContent(http.StatusNoContent)
}
