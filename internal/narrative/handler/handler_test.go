package handler

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimdesk/internal/narrative/models"
	"claimdesk/internal/narrative/service"
	"claimdesk/internal/narrative/store"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/testutil"
)

func newVersionRouter(t *testing.T) chi.Router {
	t.Helper()
	svc := service.New(store.NewMemory())
	r := chi.NewRouter()
	r.Route("/claims/{claimID}", func(r chi.Router) {
		r.Mount("/versions", New(svc).Routes())
	})
	return r
}

func createVersion(t *testing.T, router chi.Router, claimID id.ClaimID, text string) *models.DescriptionVersion {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost,
		"/claims/"+claimID.String()+"/versions", map[string]any{"text": text})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalResponse[models.DescriptionVersion](t, rr)
}

func TestVersionLifecycleViaHandler(t *testing.T) {
	router := newVersionRouter(t)
	claimID := id.ClaimID(uuid.New())
	base := "/claims/" + claimID.String() + "/versions"

	first := createVersion(t, router, claimID, "hail damage to roof")
	second := createVersion(t, router, claimID, "hail damage to roof and gutters")
	assert.Equal(t, 2, second.Version)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/current"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	current := testutil.UnmarshalResponse[models.DescriptionVersion](t, rr)
	assert.Equal(t, second.ID, current.ID)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base))
	testutil.AssertStatus(t, rr, http.StatusOK)
	listed := testutil.UnmarshalResponse[struct {
		Versions []models.DescriptionVersion `json:"versions"`
	}](t, rr)
	require.Len(t, listed.Versions, 2)
	assert.Equal(t, second.ID, listed.Versions[0].ID, "history is newest first")
	assert.Equal(t, first.ID, listed.Versions[1].ID)
}

func TestVersionRestoreViaHandler(t *testing.T) {
	router := newVersionRouter(t)
	claimID := id.ClaimID(uuid.New())
	base := "/claims/" + claimID.String() + "/versions"

	var first *models.DescriptionVersion
	testutil.Given(t, "a claim with two versions", func(t *testing.T) {
		first = createVersion(t, router, claimID, "original account")
		createVersion(t, router, claimID, "revised account")
	})

	testutil.When(t, "the original version is restored", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost,
			base+"/"+first.ID.String()+"/restore"))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	testutil.Then(t, "a third version carries the original text", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/current"))
		current := testutil.UnmarshalResponse[models.DescriptionVersion](t, rr)
		assert.Equal(t, 3, current.Version)
		assert.Equal(t, "original account", current.Text)
		assert.Equal(t, "restored from version 1", current.Note)
	})
}

func TestDeleteCurrentVersionViaHandler(t *testing.T) {
	router := newVersionRouter(t)
	claimID := id.ClaimID(uuid.New())
	current := createVersion(t, router, claimID, "only version")

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete,
		"/claims/"+claimID.String()+"/versions/"+current.ID.String()))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestCreateVersionRecordsActor(t *testing.T) {
	router := newVersionRouter(t)
	claimID := id.ClaimID(uuid.New())
	actor := uuid.NewString()

	req := testutil.NewJSONRequest(t, http.MethodPost,
		"/claims/"+claimID.String()+"/versions", map[string]any{"text": "filed by adjuster"})
	rr := testutil.DoRequest(router, testutil.WithActor(req, actor))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	created := testutil.UnmarshalResponse[models.DescriptionVersion](t, rr)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, actor, created.CreatedBy.String())
}

func TestVersionValidationViaHandler(t *testing.T) {
	router := newVersionRouter(t)
	claimID := id.ClaimID(uuid.New())
	base := "/claims/" + claimID.String() + "/versions"

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base,
		map[string]any{"text": "  "}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/current"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/"+uuid.NewString()))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
