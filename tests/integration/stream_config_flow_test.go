package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/beemstream/user-config-service/internal/activation"
	"github.com/beemstream/user-config-service/internal/database"
	"github.com/beemstream/user-config-service/internal/favourites"
	"github.com/beemstream/user-config-service/internal/platform"
	"github.com/beemstream/user-config-service/internal/presets"
	"github.com/beemstream/user-config-service/internal/server"
)

const (
	validToken      = "Bearer abc123"
	jsonContentType = "application/json"
)

type fakePlatform struct {
	mu sync.Mutex

	channelUpdates []map[string]any
	tagReplaces    []map[string]any
}

func (f *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("token") != validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 7})
	})

	mux.HandleFunc("/oauth2/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "OAuth abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"client_id": "client-abc",
			"login":     "streamer",
			"user_id":   "42",
		})
	})

	mux.HandleFunc("/helix/channels", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{
					"broadcaster_id":       "42",
					"broadcaster_name":     "streamer",
					"broadcaster_language": "en",
					"game_id":              "509658",
					"game_name":            "Just Chatting",
				}},
			})
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			var decoded map[string]any
			if err := json.Unmarshal(body, &decoded); err != nil {
				t.Errorf("malformed channel update body: %v", err)
			}
			f.mu.Lock()
			f.channelUpdates = append(f.channelUpdates, decoded)
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/helix/streams/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Errorf("malformed tag replace body: %v", err)
		}
		f.mu.Lock()
		f.tagReplaces = append(f.tagReplaces, decoded)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newTestService(t *testing.T, remote *fakePlatform) *httptest.Server {
	t.Helper()

	remoteServer := httptest.NewServer(remote.handler(t))
	t.Cleanup(remoteServer.Close)

	db, err := database.OpenSQLite("file:"+t.Name()+"?mode=memory&cache=shared", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	client, err := platform.NewClient(platform.ClientConfig{
		AuthURL:     remoteServer.URL + "/profile",
		APIBaseURL:  remoteServer.URL,
		AuthBaseURL: remoteServer.URL,
		ClientID:    "client-abc",
	})
	if err != nil {
		t.Fatalf("failed to build platform client: %v", err)
	}

	registry, err := favourites.NewRegistry(favourites.RegistryConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	store, err := presets.NewStore(presets.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	orchestrator, err := activation.NewOrchestrator(activation.OrchestratorConfig{
		Platform: client,
		Presets:  store,
	})
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Registry:     registry,
		Store:        store,
		Orchestrator: orchestrator,
		Platform:     client,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	service := httptest.NewServer(handler)
	t.Cleanup(service.Close)
	return service
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	request, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("token", validToken)
	if body != "" {
		request.Header.Set("Content-Type", jsonContentType)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { response.Body.Close() })
	return response
}

func TestFavouriteRegistrationFlow(t *testing.T) {
	service := newTestService(t, &fakePlatform{})

	body := `{"identifier":"streamerA","source":"Twitch"}`
	first := doJSON(t, http.MethodPost, service.URL+"/stream-config/favourite-streams", body)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}

	second := doJSON(t, http.MethodPost, service.URL+"/stream-config/favourite-streams", body)
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", second.StatusCode)
	}

	listing := doJSON(t, http.MethodGet, service.URL+"/stream-config/favourite-streams", "")
	if listing.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listing.StatusCode)
	}
	var entries []map[string]string
	if err := json.NewDecoder(listing.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(entries) != 1 || entries[0]["identifier"] != "streamerA" {
		t.Fatalf("unexpected listing: %v", entries)
	}
}

func TestPresetSaveAndActivationFlow(t *testing.T) {
	remote := &fakePlatform{}
	service := newTestService(t, remote)

	saveBody := `{"title":{"title":"Ranked Grind"},"tags":[{"id":"tag-1","name":"Speedrun"},{"id":"tag-2","name":"English"}]}`
	saved := doJSON(t, http.MethodPost, service.URL+"/stream-config/stream-management", saveBody)
	if saved.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on save, got %d", saved.StatusCode)
	}

	listing := doJSON(t, http.MethodGet, service.URL+"/stream-config/stream-management", "")
	if listing.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on list, got %d", listing.StatusCode)
	}
	var bundles []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
		Tags  []struct {
			SourceID string `json:"source_id"`
		} `json:"tags"`
	}
	if err := json.NewDecoder(listing.Body).Decode(&bundles); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(bundles) != 1 || bundles[0].Title != "Ranked Grind" || len(bundles[0].Tags) != 2 {
		t.Fatalf("unexpected listing: %+v", bundles)
	}

	activate := doJSON(t, http.MethodPut,
		service.URL+"/stream-config/stream-management/"+strconv.Itoa(bundles[0].ID)+"/set", "")
	if activate.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on activation, got %d", activate.StatusCode)
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.channelUpdates) != 1 {
		t.Fatalf("expected one channel update, got %d", len(remote.channelUpdates))
	}
	update := remote.channelUpdates[0]
	if update["title"] != "Ranked Grind" {
		t.Fatalf("expected preset title pushed, got %v", update["title"])
	}
	if update["game_id"] != "509658" {
		t.Fatalf("expected remote game preserved, got %v", update["game_id"])
	}
	if update["broadcaster_language"] != "en" {
		t.Fatalf("expected remote language preserved, got %v", update["broadcaster_language"])
	}

	if len(remote.tagReplaces) != 1 {
		t.Fatalf("expected one tag replace, got %d", len(remote.tagReplaces))
	}
	tagIDs, ok := remote.tagReplaces[0]["tag_ids"].([]any)
	if !ok {
		t.Fatalf("expected tag_ids array, got %v", remote.tagReplaces[0])
	}
	if len(tagIDs) != 0 {
		t.Fatalf("activation clears remote tags, got %v", tagIDs)
	}
}

func TestActivationOfUnknownPresetIsNotFound(t *testing.T) {
	remote := &fakePlatform{}
	service := newTestService(t, remote)

	response := doJSON(t, http.MethodPut, service.URL+"/stream-config/stream-management/999/set", "")
	if response.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", response.StatusCode)
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.channelUpdates) != 0 || len(remote.tagReplaces) != 0 {
		t.Fatalf("no remote write may happen for a missing preset")
	}
}
