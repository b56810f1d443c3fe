package grc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclytics/sirsync/internal/pipeline"
)

func TestFetchRecordsSince(t *testing.T) {
	t.Run("pages until a short page", func(t *testing.T) {
		var requests []searchRequest

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/records/search", r.URL.Path)
			assert.Equal(t, "Token api-tok", r.Header.Get("Authorization"))

			var sreq searchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sreq))
			requests = append(requests, sreq)

			count := sreq.PageSize
			if sreq.Page == 3 {
				count = 1
			}
			records := make([]pipeline.RawRecord, count)
			for i := range records {
				records[i] = pipeline.RawRecord{
					IncidentID: int64((sreq.Page-1)*sreq.PageSize + i + 1),
					StatusID:   fmt.Sprintf("SIR-%03d", i),
				}
			}
			json.NewEncoder(w).Encode(searchResponse{Records: records})
		}))
		defer srv.Close()

		c, err := New(srv.URL, "api-tok", WithPageSize(2))
		require.NoError(t, err)

		records, err := c.FetchRecordsSince(context.Background(), 40)
		require.NoError(t, err)
		assert.Len(t, records, 5)

		require.Len(t, requests, 3)
		for i, sreq := range requests {
			assert.Equal(t, int64(40), sreq.IncidentIDGreaterThan)
			assert.Equal(t, i+1, sreq.Page)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse{})
		}))
		defer srv.Close()

		c, err := New(srv.URL, "")
		require.NoError(t, err)

		records, err := c.FetchRecordsSince(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("non-2xx fails the fetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		c, err := New(srv.URL, "")
		require.NoError(t, err)

		_, err = c.FetchRecordsSince(context.Background(), 0)
		assert.Error(t, err)
	})

	t.Run("base URL is required", func(t *testing.T) {
		_, err := New("", "tok")
		assert.Error(t, err)
	})
}
