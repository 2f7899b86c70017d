package webserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/types"
	"github.com/workmesh/workmesh/src/api/webserver"
)

func newJobsRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Account{}, &types.Job{}, &types.Proposal{}, &types.Milestone{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	jobs := webserver.NewJobs(db, nil)
	r := gin.New()
	r.GET("/v1/jobs/:id", jobs.Get)
	return r, db
}

func seedJobWithProposal(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []interface{}{
		&types.Job{ID: 1, ClientID: 10, Title: "Build site", Status: types.JobOpen},
		&types.Proposal{JobID: 1, FreelancerID: 20, CoverLetter: "hi", Status: types.ProposalPending},
		&types.Milestone{JobID: 1, FreelancerID: 20, Ord: 1, Name: "Frontend", Status: types.MilestonePending},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestGetJobIncludesProposals(t *testing.T) {
	r, db := newJobsRouter(t)
	seedJobWithProposal(t, db)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Job struct {
			ID uint64
		} `json:"job"`
		Proposals []struct {
			FreelancerID uint64
			Milestones   []struct {
				Ord uint32
			}
		} `json:"proposals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job.ID != 1 {
		t.Fatalf("job id = %d", body.Job.ID)
	}
	if len(body.Proposals) != 1 || body.Proposals[0].FreelancerID != 20 {
		t.Fatalf("unexpected proposals %+v", body.Proposals)
	}
	if len(body.Proposals[0].Milestones) != 1 || body.Proposals[0].Milestones[0].Ord != 1 {
		t.Fatalf("unexpected milestones %+v", body.Proposals[0].Milestones)
	}
}

func TestGetJobSurfacesStoreFailure(t *testing.T) {
	r, db := newJobsRouter(t)
	seedJobWithProposal(t, db)
	// break the proposal preload so the handler's query errors
	if err := db.Exec("DROP TABLE milestones").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Err  string `json:"err"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != lifecycle.CodePersistenceFailure {
		t.Fatalf("code = %s", body.Code)
	}
	if body.Err != lifecycle.ErrPersistence.Message {
		t.Fatalf("store internals leaked: %q", body.Err)
	}
}
