package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/toolshed/marketplace/internal/api/handlers"
	"github.com/toolshed/marketplace/internal/api/middleware"
	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/mocks"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

var (
	alice = &entities.User{ID: "user-alice", FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Active: true}
	bob   = &entities.User{ID: "user-bob", FirstName: "Bob", LastName: "Jones", Email: "bob@example.com", Active: true}
)

type fixture struct {
	users     *mocks.UserRepository
	addresses *mocks.AddressRepository
	tools     *mocks.ToolRepository
	lookups   *mocks.LookupRepository
	uploads   *mocks.FileUploadRepository
	listings  *mocks.ListingRepository
	messages  *mocks.MessageRepository
	publisher *mocks.MessagePublisher
	storage   *mocks.FileStorage
	geocoder  *mocks.GeolocationProvider
	cache     *mocks.CacheProvider
}

func newFixture() *fixture {
	return &fixture{
		users:     new(mocks.UserRepository),
		addresses: new(mocks.AddressRepository),
		tools:     new(mocks.ToolRepository),
		lookups:   new(mocks.LookupRepository),
		uploads:   new(mocks.FileUploadRepository),
		listings:  new(mocks.ListingRepository),
		messages:  new(mocks.MessageRepository),
		publisher: new(mocks.MessagePublisher),
		storage:   new(mocks.FileStorage),
		geocoder:  new(mocks.GeolocationProvider),
		cache:     new(mocks.CacheProvider),
	}
}

func (f *fixture) catalog() *services.CatalogService {
	return services.NewCatalogService(f.tools, f.listings, f.uploads, f.storage)
}

func (f *fixture) listingHandler() *handlers.ListingHandler {
	geocoding := services.NewGeocodingService(f.addresses, f.geocoder, f.cache, time.Hour, nil)
	search := services.NewListingSearchService(f.listings, f.addresses, geocoding)
	return handlers.NewListingHandler(search, f.catalog())
}

func asUser(r *http.Request, user *entities.User) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), user))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListingHandler_Search(t *testing.T) {
	f := newFixture()
	distance := 2.5
	f.listings.On("ListAddressesNeedingGeocode", mock.Anything, mock.Anything).Return([]*entities.Address{}, nil)
	f.listings.On("Search", mock.Anything, mock.MatchedBy(func(q repositories.ListingQuery) bool {
		return q.Origin != nil && q.Origin.Latitude == 40.7 && q.Origin.Longitude == -74 &&
			q.RadiusKm != nil && *q.RadiusKm == 10 && q.TSQuery == "cordless & drill"
	})).Return([]entities.ListingSearchResult{{
		Listing:    entities.Listing{ID: "listing-1", Active: true},
		Tool:       entities.Tool{ID: "tool-1", Name: "Cordless drill"},
		Owner:      alice.Summary(),
		DistanceKm: &distance,
	}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/listings/search?q=cordless+drill&lat=40.7&lon=-74&radius=10", nil)
	rec := httptest.NewRecorder()
	f.listingHandler().Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])
	f.listings.AssertExpectations(t)
}

func TestListingHandler_SearchValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"malformed latitude", "lat=north&lon=1", "invalid lat parameter"},
		{"latitude without longitude", "lat=1", "lat and lon must be given together"},
		{"radius without origin", "radius=5", "radius requires an origin"},
		{"malformed radius", "lat=1&lon=1&radius=far", "invalid radius parameter"},
		{"out of range origin", "lat=91&lon=1", "origin coordinates are out of range"},
		{"negative radius", "lat=1&lon=1&radius=-3", "radius must be a positive number"},
		{"NaN radius", "lat=1&lon=1&radius=NaN", "invalid radius parameter"},
		{"infinite radius", "lat=1&lon=1&radius=Inf", "invalid radius parameter"},
		{"NaN latitude", "lat=nan&lon=1", "invalid lat parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := httptest.NewRequest(http.MethodGet, "/api/listings/search?"+tt.query, nil)
			rec := httptest.NewRecorder()
			f.listingHandler().Search(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeBody(t, rec)["error"])
			f.listings.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}

func TestListingHandler_SearchNearMeRequiresSession(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/listings/search?near_me=true", nil)
	rec := httptest.NewRecorder()
	f.listingHandler().Search(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListingHandler_Create(t *testing.T) {
	f := newFixture()
	f.tools.On("GetByID", mock.Anything, "tool-1").Return(&entities.Tool{ID: "tool-1", OwnerID: alice.ID}, nil)
	f.listings.On("Create", mock.Anything, mock.AnythingOfType("*entities.Listing")).Return(nil)

	body := `{"tool_id":"tool-1","price_cents":1500,"billing_interval":"day","max_billing_intervals":7}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)), alice)
	rec := httptest.NewRecorder()
	f.listingHandler().Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	assert.Equal(t, true, created["active"])
	assert.Equal(t, "day", created["billing_interval"])
}

func TestListingHandler_CreateRejectsForeignTool(t *testing.T) {
	f := newFixture()
	f.tools.On("GetByID", mock.Anything, "tool-1").Return(&entities.Tool{ID: "tool-1", OwnerID: bob.ID}, nil)

	body := `{"tool_id":"tool-1","price_cents":1500,"billing_interval":"day","max_billing_intervals":1}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)), alice)
	rec := httptest.NewRecorder()
	f.listingHandler().Create(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.listings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListingHandler_SetActive(t *testing.T) {
	f := newFixture()
	f.listings.On("GetByID", mock.Anything, "listing-1").Return(&entities.Listing{ID: "listing-1", ToolID: "tool-1", Active: true}, nil)
	f.tools.On("GetByID", mock.Anything, "tool-1").Return(&entities.Tool{ID: "tool-1", OwnerID: alice.ID}, nil)
	f.listings.On("SetActive", mock.Anything, "listing-1", false).Return(nil)

	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/listings/listing-1", strings.NewReader(`{"active":false}`)), alice)
	req.SetPathValue("id", "listing-1")
	rec := httptest.NewRecorder()
	f.listingHandler().SetActive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["active"])
}

func TestListingHandler_SetActiveRequiresField(t *testing.T) {
	f := newFixture()
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/listings/listing-1", strings.NewReader(`{}`)), alice)
	req.SetPathValue("id", "listing-1")
	rec := httptest.NewRecorder()
	f.listingHandler().SetActive(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingHandler_DeleteActiveListingConflicts(t *testing.T) {
	f := newFixture()
	f.listings.On("GetByID", mock.Anything, "listing-1").Return(&entities.Listing{ID: "listing-1", ToolID: "tool-1", Active: true}, nil)
	f.tools.On("GetByID", mock.Anything, "tool-1").Return(&entities.Tool{ID: "tool-1", OwnerID: alice.ID}, nil)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/listings/listing-1", nil), alice)
	req.SetPathValue("id", "listing-1")
	rec := httptest.NewRecorder()
	f.listingHandler().Delete(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	f.listings.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestToolHandler_GetNotFound(t *testing.T) {
	f := newFixture()
	f.tools.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("tool not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/tools/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	handlers.NewToolHandler(f.catalog(), 1<<20).Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "tool not found", decodeBody(t, rec)["error"])
}

func TestToolHandler_DeleteWithActiveListings(t *testing.T) {
	f := newFixture()
	f.tools.On("GetByID", mock.Anything, "tool-1").Return(&entities.Tool{ID: "tool-1", OwnerID: alice.ID}, nil)
	f.tools.On("CountActiveListings", mock.Anything, "tool-1").Return(2, nil)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/tools/tool-1", nil), alice)
	req.SetPathValue("id", "tool-1")
	rec := httptest.NewRecorder()
	handlers.NewToolHandler(f.catalog(), 1<<20).Delete(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	f.tools.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func multipartManual(t *testing.T, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="manual"; filename="drill.pdf"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestToolHandler_UploadManual(t *testing.T) {
	f := newFixture()
	f.storage.On("Save", mock.Anything, "drill.pdf", "application/pdf", mock.Anything).
		Return(&providers.StoredFile{OriginalName: "drill.pdf", MimeType: "application/pdf", Size: 7, StoredPath: "abc.pdf"}, nil)
	f.uploads.On("Create", mock.Anything, mock.MatchedBy(func(u *entities.FileUpload) bool {
		return u.UploaderID == alice.ID && u.Path == "abc.pdf"
	})).Return(nil)

	body, contentType := multipartManual(t, "application/pdf", "%PDF-1.")
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/uploads", body), alice)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handlers.NewToolHandler(f.catalog(), 1<<20).UploadManual(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "drill.pdf", decodeBody(t, rec)["original_name"])
	f.uploads.AssertExpectations(t)
}

func TestToolHandler_UploadManualRejectsType(t *testing.T) {
	f := newFixture()
	body, contentType := multipartManual(t, "application/x-msdownload", "MZ")
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/uploads", body), alice)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handlers.NewToolHandler(f.catalog(), 1<<20).UploadManual(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.storage.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestToolHandler_UploadManualMissingFile(t *testing.T) {
	f := newFixture()
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("")), alice)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	handlers.NewToolHandler(f.catalog(), 1<<20).UploadManual(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupHandler_Search(t *testing.T) {
	f := newFixture()
	f.lookups.On("Search", mock.Anything, entities.LookupKindMaker, "dew:*").
		Return([]*entities.LookupEntry{{ID: "m1", Kind: entities.LookupKindMaker, Name: "DeWalt"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/lookups/makers?q=dew", nil)
	req.SetPathValue("kind", "makers")
	rec := httptest.NewRecorder()
	handlers.NewLookupHandler(services.NewLookupService(f.lookups)).Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])
}

func TestLookupHandler_UnknownKind(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/lookups/colours", nil)
	req.SetPathValue("kind", "colours")
	rec := httptest.NewRecorder()
	handlers.NewLookupHandler(services.NewLookupService(f.lookups)).Search(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookupHandler_Create(t *testing.T) {
	f := newFixture()
	f.lookups.On("Create", mock.Anything, mock.MatchedBy(func(e *entities.LookupEntry) bool {
		return e.Kind == entities.LookupKindCategory && e.Name == "Saws"
	})).Return(nil)

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/lookups/categories", strings.NewReader(`{"name":"  Saws "}`)), alice)
	req.SetPathValue("kind", "categories")
	rec := httptest.NewRecorder()
	handlers.NewLookupHandler(services.NewLookupService(f.lookups)).Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Saws", decodeBody(t, rec)["name"])
}

func (f *fixture) messageHandler() *handlers.MessageHandler {
	return handlers.NewMessageHandler(services.NewConversationService(f.messages, f.users, f.publisher))
}

func TestMessageHandler_Send(t *testing.T) {
	f := newFixture()
	f.users.On("GetByID", mock.Anything, bob.ID).Return(bob, nil)
	f.messages.On("Create", mock.Anything, mock.AnythingOfType("*entities.UserMessage")).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("*entities.UserMessage")).Return(nil).Once()

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/messages/user-bob", strings.NewReader(`{"content":"Is the drill free Saturday?"}`)), alice)
	req.SetPathValue("userId", bob.ID)
	rec := httptest.NewRecorder()
	f.messageHandler().Send(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, alice.ID, body["sender_id"])
	assert.Equal(t, bob.ID, body["recipient_id"])
	f.publisher.AssertExpectations(t)
}

func TestMessageHandler_SendToSelf(t *testing.T) {
	f := newFixture()
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/messages/user-alice", strings.NewReader(`{"content":"note to self"}`)), alice)
	req.SetPathValue("userId", alice.ID)
	rec := httptest.NewRecorder()
	f.messageHandler().Send(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageHandler_SendHidesInternalErrors(t *testing.T) {
	f := newFixture()
	f.users.On("GetByID", mock.Anything, bob.ID).Return(bob, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).Return(errors.New("pq: connection refused to 10.0.0.5"))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/messages/user-bob", strings.NewReader(`{"content":"hello"}`)), alice)
	req.SetPathValue("userId", bob.ID)
	rec := httptest.NewRecorder()
	f.messageHandler().Send(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestMessageHandler_Threads(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.messages.On("ListForUser", mock.Anything, alice.ID).Return([]*entities.UserMessage{
		{ID: "m1", SenderID: alice.ID, RecipientID: bob.ID, Content: "hi", CreatedAt: now.Add(-time.Hour)},
		{ID: "m2", SenderID: bob.ID, RecipientID: alice.ID, Content: "hello", CreatedAt: now},
	}, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/messages", nil), alice)
	rec := httptest.NewRecorder()
	f.messageHandler().Threads(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])
}

func TestAuthHandler_LoginAndLogout(t *testing.T) {
	f := newFixture()
	hash, err := services.HashPassword("correct horse")
	require.NoError(t, err)
	user := *alice
	user.PasswordHash = hash
	f.users.On("GetByEmail", mock.Anything, alice.Email).Return(&user, nil)

	handler := handlers.NewAuthHandler(services.NewAuthService(f.users, "test-secret", time.Hour), "toolshed_session", true)

	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"email":"alice@example.com","password":"correct horse"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "toolshed_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.NotEmpty(t, cookies[0].Value)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = httptest.NewRecorder()
	handler.Logout(rec, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthHandler_LoginWrongPassword(t *testing.T) {
	f := newFixture()
	hash, err := services.HashPassword("correct horse")
	require.NoError(t, err)
	user := *alice
	user.PasswordHash = hash
	f.users.On("GetByEmail", mock.Anything, alice.Email).Return(&user, nil)

	handler := handlers.NewAuthHandler(services.NewAuthService(f.users, "test-secret", time.Hour), "toolshed_session", false)
	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"email":"alice@example.com","password":"battery staple"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}
