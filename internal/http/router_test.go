package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/aulalibre/go-aula-backend/internal/auth"
	"github.com/aulalibre/go-aula-backend/internal/config"
	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/repo"
	"github.com/aulalibre/go-aula-backend/internal/storage"
	"github.com/aulalibre/go-aula-backend/internal/ws"
)

const testSecret = "router-test-secret"

func signToken(t *testing.T, userID int64, role domain.Role) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", userID),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// newAPI wires the full stack against a throwaway database with a docente
// (id 1) and an estudiante (id 2) in the shared users table.
func newAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := repo.OpenSQLite(filepath.Join(dir, "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := []domain.User{
		{ID: 1, Role: domain.RoleDocente, Name: "Prof. Rivas"},
		{ID: 2, Role: domain.RoleEstudiante, Name: "Ana Torres"},
	}
	if err := db.Create(&users).Error; err != nil {
		t.Fatalf("seed users: %v", err)
	}

	store, err := storage.NewStore(filepath.Join(dir, "attachments"), 10<<20)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	cfg := config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     1000,
		RateBurst:   1000,
		Attachment:  config.AttachmentConfig{Dir: filepath.Join(dir, "attachments"), MaxBytes: 10 << 20},
		WS: config.WSConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingInterval:   54 * time.Second,
			MaxMessageSize: 1024,
			SendBuffer:     16,
		},
	}

	r := gin.New()
	RegisterRoutes(r, db, store, ws.NewRegistry(), auth.NewVerifier(testSecret), cfg)
	return r, db
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndMetricsArePublic(t *testing.T) {
	r, _ := newAPI(t)

	if w := do(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("/health = %d; want 200", w.Code)
	}
	if w := do(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Errorf("/metrics = %d; want 200", w.Code)
	}
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	r, _ := newAPI(t)

	if w := do(r, http.MethodGet, "/api/v1/chats", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestRouter_UnknownRouteEnvelope(t *testing.T) {
	r, _ := newAPI(t)

	w := do(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body["code"] != "not_found" {
		t.Errorf("code = %q", body["code"])
	}
}

// End-to-end flow over the real stack: open a chat, message both ways,
// page the history, ingest an event, and drain the notification inbox.
func TestRouter_EndToEndFlow(t *testing.T) {
	r, _ := newAPI(t)
	docente := signToken(t, 1, domain.RoleDocente)
	estudiante := signToken(t, 2, domain.RoleEstudiante)

	// Docente opens the chat; repeating the call returns the same chat.
	w := do(r, http.MethodPost, "/api/v1/chats", docente, map[string]any{"peer_id": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat = %d (%s)", w.Code, w.Body.String())
	}
	var chat domain.Chat
	if err := json.Unmarshal(w.Body.Bytes(), &chat); err != nil {
		t.Fatalf("chat body: %v", err)
	}

	w = do(r, http.MethodPost, "/api/v1/chats", estudiante, map[string]any{"peer_id": 1})
	var again domain.Chat
	if err := json.Unmarshal(w.Body.Bytes(), &again); err != nil {
		t.Fatalf("chat body: %v", err)
	}
	if again.ID != chat.ID {
		t.Fatalf("create is not idempotent: %q vs %q", again.ID, chat.ID)
	}

	// Both participants message.
	for i, tok := range []string{docente, estudiante} {
		w = do(r, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", tok, map[string]any{"body": fmt.Sprintf("mensaje %d", i)})
		if w.Code != http.StatusCreated {
			t.Fatalf("send %d = %d (%s)", i, w.Code, w.Body.String())
		}
	}

	// History comes back newest first.
	w = do(r, http.MethodGet, "/api/v1/chats/"+chat.ID+"/messages", docente, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages = %d (%s)", w.Code, w.Body.String())
	}
	var page struct {
		Messages []domain.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("page body: %v", err)
	}
	if len(page.Messages) != 2 || page.HasMore {
		t.Fatalf("page = %+v", page)
	}
	if page.Messages[0].Body != "mensaje 1" {
		t.Errorf("newest first violated: %q", page.Messages[0].Body)
	}

	// An outsider may not post into the chat.
	outsider := signToken(t, 3, domain.RoleEstudiante)
	w = do(r, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", outsider, map[string]any{"body": "intruso"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider send = %d; want 403", w.Code)
	}

	// Docente ingests a grading event for the estudiante.
	w = do(r, http.MethodPost, "/api/v1/events", docente, map[string]any{
		"kind": "calificacion", "recipient_id": 2, "body": "nota publicada",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest event = %d (%s)", w.Code, w.Body.String())
	}

	// Estudiante sees it, acknowledges it, and a repeat ack is 404.
	w = do(r, http.MethodGet, "/api/v1/notifications", estudiante, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list notifications = %d", w.Code)
	}
	var inbox struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int64                 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &inbox); err != nil {
		t.Fatalf("inbox body: %v", err)
	}
	if inbox.Total != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}

	nid := inbox.Notifications[0].ID
	if w = do(r, http.MethodDelete, "/api/v1/notifications/"+nid, estudiante, nil); w.Code != http.StatusNoContent {
		t.Fatalf("ack = %d", w.Code)
	}
	if w = do(r, http.MethodDelete, "/api/v1/notifications/"+nid, estudiante, nil); w.Code != http.StatusNotFound {
		t.Fatalf("repeat ack = %d; want 404", w.Code)
	}
}

func TestRouter_EstudiantePairRules(t *testing.T) {
	r, db := newAPI(t)
	if err := db.Create(&domain.User{ID: 4, Role: domain.RoleEstudiante, Name: "Luis Paz"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	estudiante := signToken(t, 2, domain.RoleEstudiante)

	// estudiante ↔ estudiante allowed
	w := do(r, http.MethodPost, "/api/v1/chats", estudiante, map[string]any{"peer_id": 4})
	if w.Code != http.StatusCreated {
		t.Fatalf("estudiante pair = %d (%s)", w.Code, w.Body.String())
	}

	// docente ↔ docente rejected
	if err := db.Create(&domain.User{ID: 5, Role: domain.RoleDocente, Name: "Prof. Soto"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	docente := signToken(t, 1, domain.RoleDocente)
	w = do(r, http.MethodPost, "/api/v1/chats", docente, map[string]any{"peer_id": 5})
	if w.Code != http.StatusForbidden {
		t.Fatalf("docente pair = %d; want 403", w.Code)
	}

	// unknown peer
	w = do(r, http.MethodPost, "/api/v1/chats", docente, map[string]any{"peer_id": 999})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown peer = %d; want 404", w.Code)
	}
}
