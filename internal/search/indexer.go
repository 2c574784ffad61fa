// Package search keeps a denormalised copy of each application in
// Elasticsearch for custodian dashboards.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/common/metrics"
	"dar-workers/internal/engine/amendments"
	"dar-workers/internal/engine/review"
	"dar-workers/internal/engine/versions"
	"dar-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// Document is the indexed shape of an application. Answers use the
// custodian's projection so unsubmitted applicant edits never leak.
type Document struct {
	ApplicationID   string                 `json:"applicationId"`
	TeamID          string                 `json:"teamId"`
	Status          string                 `json:"status"`
	Version         int                    `json:"version"`
	MajorVersion    int                    `json:"majorVersion"`
	ActiveStep      string                 `json:"activeStep,omitempty"`
	AmendmentStatus string                 `json:"amendmentStatus,omitempty"`
	ApplicantIDs    []string               `json:"applicantIds"`
	Reviewers       []string               `json:"reviewers,omitempty"`
	Answers         map[string]interface{} `json:"answers,omitempty"`
	DateSubmitted   *time.Time             `json:"dateSubmitted,omitempty"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// NewDocument builds the indexed document for app at version.
func NewDocument(app *models.Application, version int) Document {
	doc := Document{
		ApplicationID:   app.ID,
		TeamID:          app.Publisher,
		Status:          string(app.Status),
		Version:         version,
		MajorVersion:    app.MajorVersion,
		AmendmentStatus: string(amendments.CalculateAmendmentStatus(app, models.UserTypeCustodian)),
		ApplicantIDs:    app.ApplicantIDs(),
		Answers:         versions.Current(app, models.UserTypeCustodian),
		DateSubmitted:   app.DateSubmitted,
		UpdatedAt:       app.UpdatedAt,
	}
	if idx := review.ActiveStepIndex(app); idx >= 0 {
		step := app.Workflow.Steps[idx]
		doc.ActiveStep = step.StepName
		doc.Reviewers = step.Reviewers
	}
	return doc
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

// Index writes the application document. Stale versions are rejected by
// Elasticsearch through external versioning and are not errors.
func (i *Indexer) Index(ctx context.Context, app *models.Application, version int) error {
	body, err := json.Marshal(NewDocument(app, version))
	if err != nil {
		return fmt.Errorf("encode search document: %w", err)
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(app.ID),
		i.client.Index.WithVersion(version),
		i.client.Index.WithVersionType("external"),
	)
	if err != nil {
		metrics.SearchIndexed.WithLabelValues("error").Inc()
		return errors.NewSearchIndexFailedError(app.ID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 409 {
		metrics.SearchIndexed.WithLabelValues("stale").Inc()
		return nil
	}
	if res.IsError() {
		metrics.SearchIndexed.WithLabelValues("error").Inc()
		msg, _ := io.ReadAll(res.Body)
		return errors.NewSearchIndexFailedError(app.ID, fmt.Errorf("%s: %s", res.Status(), msg))
	}
	metrics.SearchIndexed.WithLabelValues("ok").Inc()
	return nil
}

// Filter narrows a dashboard query. Empty fields match everything.
type Filter struct {
	TeamID     string
	Status     string
	ReviewerID string
	Size       int
}

// Search returns matching application ids, most recently updated first.
func (i *Indexer) Search(ctx context.Context, f Filter) ([]string, error) {
	must := []map[string]interface{}{}
	if f.TeamID != "" {
		must = append(must, term("teamId", f.TeamID))
	}
	if f.Status != "" {
		must = append(must, term("status", f.Status))
	}
	if f.ReviewerID != "" {
		must = append(must, term("reviewers", f.ReviewerID))
	}
	size := f.Size
	if size <= 0 {
		size = 50
	}

	query := map[string]interface{}{
		"size":    size,
		"_source": false,
		"sort":    []interface{}{map[string]interface{}{"updatedAt": "desc"}},
		"query":   map[string]interface{}{"bool": map[string]interface{}{"filter": must}},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewExternalServiceError("elasticsearch", fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func term(field, value string) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}
