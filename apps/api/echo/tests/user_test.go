package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/picha/apps/api/echo"
	"github.com/trezcool/picha/core/user"
	emailsvc "github.com/trezcool/picha/services/email"
	testutil "github.com/trezcool/picha/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Active User", "awe", "awe@test.cd", "s3cr3t!pwd", nil, true)
	testutil.CreateUser(t, usrRepo, "Naughty User", "ndog", "ndog@test.cd", "s3cr3t!pwd", nil, false)

	tests := []httpTest{
		{
			name:     "empty body fails",
			body:     marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "username is a required field",
				"password": "password is a required field",
			}),
		},
		{
			name:     "unknown user fails",
			body:     marchallObj(t, LoginRequest{Username: "lol", Password: "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password fails",
			body:     marchallObj(t, LoginRequest{Username: "awe", Password: "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account fails",
			body:     marchallObj(t, LoginRequest{Username: "ndog", Password: "s3cr3t!pwd"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "login with username",
			body:     marchallObj(t, LoginRequest{Username: "awe", Password: "s3cr3t!pwd"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marchallObj(t, LoginRequest{Username: "awe@test.cd", Password: "s3cr3t!pwd"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var res LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.NotEmpty(t, res.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_tokenRefresh(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "s3cr3t!pwd", nil, true)
	token := getToken(t, usr)

	t.Run("no token fails", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("refresh ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)
	})
}

func Test_userApi_passwordResetFlow(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "0ld!pwd11", nil, true)

	// request a reset; the response never reveals whether the account exists
	sentBefore := len(emailsvc.SentMessages)
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, PasswordResetRequest{Email: usr.Email}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, emailsvc.SentMessages, sentBefore+1)

	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	data, ok := msg.TemplateData.(struct {
		Username string
		UID      string
		Token    string
	})
	require.True(t, ok, "unexpected template data %T", msg.TemplateData)
	assert.Equal(t, usr.Username, data.Username)

	// confirm with the emailed uid & token
	newPwd := "n3w~pwd&22"
	body := marchallObj(t, user.ResetUserPassword{
		UID:             data.UID,
		Token:           data.Token,
		Password:        newPwd,
		PasswordConfirm: newPwd,
	})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// a used token cannot be replayed
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// the new password logs in
	req, rec = newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: usr.Username, Password: newPwd}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	path := func(search string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)

	usr1 := testutil.CreateUser(t, usrRepo, "User", "user01", "usr1@test.cd", "", nil, true, t1)
	usr2 := testutil.CreateUser(t, usrRepo, "King", "user02", "king@test.cd", "", nil, true)
	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true, t2.Truncate(time.Second))
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner1", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog01", "ndog@test.cd", "", nil, false)
	empty := marchallList(t)

	adminToken := getToken(t, admin)
	editorToken := getToken(t, editor)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/users", token: editorToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "get all", path: "/v1/users", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, usr1, usr2, editor, admin, owner, naughty)},
		{name: "search (unknown)", path: path("lol", time.Time{}, time.Time{}, nil), token: adminToken, wantCode: http.StatusOK, wantData: empty},
		{name: "search=USER", path: path("USER", time.Time{}, time.Time{}, nil), token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, usr1, usr2)},
		{name: "role=admin:", path: path("", time.Time{}, time.Time{}, nil, user.RoleAdmin), token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, admin, owner)},
		{name: "role=editor:", path: path("", time.Time{}, time.Time{}, nil, user.RoleEditor), token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, editor)},
		{name: "is_active=false", path: path("", time.Time{}, time.Time{}, bPtr(false)), token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, naughty)},
		{name: "created_from", path: path("", t1.UTC(), time.Time{}, nil), token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, usr1, admin)},
		{name: "created_from - created_to (empty)", path: path("", t3, t3.Add(time.Hour), nil), token: adminToken, wantCode: http.StatusOK, wantData: empty},
	}
	for _, tt := range tests {
		if tt.path == "" {
			tt.path = "/v1/users"
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	adminToken := getToken(t, admin)
	editorToken := getToken(t, editor)

	newUsr := func(uname, email string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New User",
			Username:        uname,
			Email:           email,
			Password:        "s3cr3t!pwd",
			PasswordConfirm: "s3cr3t!pwd",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{name: "auth required", body: newUsr("newuser", "new@test.cd"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", token: editorToken, body: newUsr("newuser", "new@test.cd"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "create ok", token: adminToken, body: newUsr("newuser", "new@test.cd", user.RoleEditor), wantCode: http.StatusCreated},
		{name: "duplicate username fails", token: adminToken, body: newUsr("newuser", "other@test.cd"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()})},
		{name: "duplicate email fails", token: adminToken, body: newUsr("other1", "new@test.cd"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()})},
		{name: "cannot grant a role above own", token: adminToken, body: newUsr("bigboss", "boss@test.cd", user.RoleAdminOwner),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
				var usr user.User
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
				assert.NotEmpty(t, usr.ID)
				assert.Equal(t, "newuser", usr.Username)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_updateDestroy(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor", "editor@test.cd", "", []string{user.RoleEditor}, true)
	adminToken := getToken(t, admin)
	editorToken := getToken(t, editor)

	t.Run("non-admin cannot change own roles", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdmin}})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+editor.ID, editorToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("non-admin can update own name", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Name: "Ed It Or"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+editor.ID, editorToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		assert.Equal(t, "Ed It Or", usr.Name)
	})

	t.Run("non-admin cannot view others", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+admin.ID, editorToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("admin can deactivate others", func(t *testing.T) {
		inactive := false
		body := marchallObj(t, user.UpdateUser{IsActive: &inactive})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+editor.ID, adminToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		require.NotNil(t, usr.IsActive)
		assert.False(t, *usr.IsActive)
	})

	t.Run("admin cannot delete themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("admin can delete others", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+editor.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+editor.ID, adminToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}
