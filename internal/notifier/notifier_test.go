package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IceStock/internal/model"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []map[string]string
	failures int // sendMessage calls to fail before succeeding
	calls    int
	updates  string
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/botTOKEN/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		if f.failures > 0 {
			f.failures--
			http.Error(w, `{"ok":false}`, http.StatusBadGateway)
			return
		}
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		f.sent = append(f.sent, payload)
		fmt.Fprint(w, `{"ok":true}`)
	})
	mux.HandleFunc("/botTOKEN/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("offset"))
		fmt.Fprint(w, f.updates)
	})
	return mux
}

func (f *fakeTelegram) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "1001", "", zerolog.Nop())
	n.APIBase = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestNew_NoopWithoutToken(t *testing.T) {
	n := New("", "1001", "", zerolog.Nop())
	assert.IsType(t, NoopNotifier{}, n)
	assert.NoError(t, n.Notify(context.Background(), "hola"))

	assert.IsType(t, &TelegramNotifier{}, New("TOKEN", "1001", "", zerolog.Nop()))
}

func TestNotify_SendsHTMLMessage(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake)

	require.NoError(t, n.Notify(context.Background(), "<b>hola</b>"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, map[string]string{"chat_id": "1001", "text": "<b>hola</b>", "parse_mode": "HTML"}, fake.sent[0])
}

func TestSendWithRetry(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		fake := &fakeTelegram{failures: 2}
		n := newTestNotifier(t, fake)
		require.NoError(t, n.SendWithRetry(context.Background(), "x", 3))
		assert.Len(t, fake.sent, 1)
	})

	t.Run("exhausted", func(t *testing.T) {
		fake := &fakeTelegram{failures: 10}
		n := newTestNotifier(t, fake)
		err := n.SendWithRetry(context.Background(), "x", 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all 3 attempts failed")
		assert.Contains(t, err.Error(), "status 502")
		assert.Equal(t, 3, fake.callCount(), "the transport adds no retries of its own")
	})

	t.Run("stops once the breaker opens", func(t *testing.T) {
		fake := &fakeTelegram{failures: 100}
		n := newTestNotifier(t, fake)
		err := n.SendWithRetry(context.Background(), "x", 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 5, fake.callCount())
	})

	t.Run("cancelled", func(t *testing.T) {
		fake := &fakeTelegram{failures: 10}
		n := newTestNotifier(t, fake)
		n.Backoff = time.Hour
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, n.SendWithRetry(ctx, "x", 3), context.DeadlineExceeded)
	})
}

func TestPoll_DispatchesCommandsFromConfiguredChat(t *testing.T) {
	fake := &fakeTelegram{updates: `{"ok":true,"result":[
		{"update_id":5,"message":{"text":" /tiendas ","chat":{"id":1001}}},
		{"update_id":6,"message":{"text":"/tiendas","chat":{"id":666}}},
		{"update_id":7}
	]}`}
	n := newTestNotifier(t, fake)

	var got []string
	next, err := n.poll(context.Background(), n.Client, 5, 0, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "respuesta"
	})
	require.NoError(t, err)
	assert.Equal(t, 8, next)
	assert.Equal(t, []string{"/tiendas"}, got)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "respuesta", fake.sent[0]["text"])
}

func TestPoll_NotOK(t *testing.T) {
	fake := &fakeTelegram{updates: `{"ok":false,"description":"Unauthorized"}`}
	n := newTestNotifier(t, fake)
	next, err := n.poll(context.Background(), n.Client, 5, 0, func(context.Context, string) string { return "" })
	require.Error(t, err)
	assert.Equal(t, 5, next)
}

func ptr(v float64) *float64 { return &v }

func sampleRecord() *model.SuggestionRecord {
	return &model.SuggestionRecord{
		StoreName: "Centro & Co",
		Suggestion: model.WeeklySuggestion{
			WeekStart: model.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			Strategy:  model.StrategyBalanced,
			Items: []model.LineItem{
				{Product: "conos_u_per_day", Family: model.FamilyUnits, Quantity: 13.5, Cases: 0.6},
				{Product: "potes_kg_per_day", Family: model.FamilyMass, Quantity: 3.3, Cases: 0.4},
			},
		},
		Explanation: "Semana fresca.",
		CreatedAt:   time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
	}
}

func TestFormatWeeklySuggestion(t *testing.T) {
	msg := FormatWeeklySuggestion(sampleRecord(), "openweathermap", []string{"infoclima falló: <parse>"})

	assert.Contains(t, msg, "<b>Centro &amp; Co</b> | semana del 2024-01-01")
	assert.Contains(t, msg, "Estrategia: balanced | Pronóstico: openweathermap")
	assert.Contains(t, msg, "conos_u_per_day: 13.5 u (0.6 bultos)")
	assert.Contains(t, msg, "potes_kg_per_day: 3.3 kg (0.4 cajas)")
	assert.Contains(t, msg, "💬 Semana fresca.")
	assert.Contains(t, msg, "⚠️ infoclima falló: &lt;parse&gt;")
}

func TestFormatWeeklySuggestion_NoItems(t *testing.T) {
	rec := sampleRecord()
	rec.Suggestion.Items = nil
	assert.Contains(t, FormatWeeklySuggestion(rec, "mock", nil), "Sin productos configurados.")
}

func TestFormatStoreList(t *testing.T) {
	assert.Equal(t, "No hay tiendas registradas.", FormatStoreList(nil))

	msg := FormatStoreList([]model.Store{
		{ID: 1, Name: "Centro", Lat: ptr(-25.3), Lon: ptr(-57.6)},
		{ID: 2, Name: "Sin GPS"},
	})
	assert.Contains(t, msg, "#1 Centro (-25.3000, -57.6000)")
	assert.Contains(t, msg, "#2 Sin GPS (sin coordenadas)")
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "Todavía no hay sugerencias.", FormatHistory(nil, 5))

	recs := []model.SuggestionRecord{*sampleRecord(), *sampleRecord(), *sampleRecord()}
	msg := FormatHistory(recs, 2)
	assert.Contains(t, msg, "2024-01-01 07:00 · Centro &amp; Co · semana 2024-01-01 · balanced · 2 productos")
	assert.Equal(t, 2, countLines(msg)-2)
}

func countLines(s string) int {
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
