package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/evan-axel/stock-scanner/internal/scanner"
)

func sampleRecord(symbol string) scanner.EnrichedRecord {
	return scanner.EnrichedRecord{
		Symbol:           symbol,
		CompanyName:      symbol + " Holdings",
		Price:            decimal.RequireFromString("9.9"),
		YearLow:          decimal.NewFromInt(10),
		DistanceFromLow:  decimal.NewFromInt(-1),
		MarketCap:        decimal.NewFromInt(50_000_000),
		MarketCapDisplay: "$50.0M",
		Industry:         "Software",
	}
}

func TestTwilioNotifierSuccess(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "AC123", user)
		require.Equal(t, "token", pass)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"sid": "SM1", "status": "queued"})
	}))
	defer srv.Close()

	notifier := NewTwilioNotifier(TwilioOptions{
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "whatsapp:+1000",
		To:         "whatsapp:+1999",
		APIBase:    srv.URL,
		Timeout:    time.Second,
	}, testLogger())

	sid, err := notifier.Notify(context.Background(), Notification{Records: []scanner.EnrichedRecord{sampleRecord("ABC")}, CallsUsed: 1})
	require.NoError(t, err)
	require.Equal(t, "SM1", sid)
	require.Equal(t, []string{"whatsapp:+1000"}, form["From"])
	require.Equal(t, []string{"whatsapp:+1999"}, form["To"])
	require.Contains(t, form["Body"][0], "*ABC - ABC Holdings*")
}

func TestTwilioNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 21211, "message": "Invalid 'To' Phone Number"})
	}))
	defer srv.Close()

	notifier := NewTwilioNotifier(TwilioOptions{AccountSID: "AC", AuthToken: "t", From: "a", To: "b", APIBase: srv.URL}, testLogger())
	_, err := notifier.Notify(context.Background(), Notification{})
	require.ErrorContains(t, err, "Invalid 'To' Phone Number")
}

func TestTwilioNotifierMissingCredentials(t *testing.T) {
	notifier := NewTwilioNotifier(TwilioOptions{}, testLogger())
	_, err := notifier.Notify(context.Background(), Notification{})
	require.Error(t, err)
}

func TestRenderMessage(t *testing.T) {
	generated := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	msg := RenderMessage(Notification{Records: []scanner.EnrichedRecord{sampleRecord("ABC")}, CallsUsed: 2, GeneratedAt: generated}, DefaultMaxLength)

	want := "🚨 *Small Cap Stocks at 52-Week Lows* 🚨\n\n" +
		"*ABC - ABC Holdings*\n" +
		"💵 Price: $9.9\n" +
		"📊 From Low: -1.0%\n" +
		"🏢 Industry: Software\n" +
		"💰 Market Cap: $50.0M\n\n" +
		"Generated: 2024-03-04 05:06:07\n" +
		"FMP API Calls Used: 2"
	require.Equal(t, want, msg)
}

func TestRenderMessageTruncates(t *testing.T) {
	records := make([]scanner.EnrichedRecord, 0, 30)
	for i := 0; i < 30; i++ {
		records = append(records, sampleRecord(strings.Repeat("X", i%4+1)))
	}
	note := Notification{Records: records, CallsUsed: 1, GeneratedAt: time.Now()}

	full := RenderMessage(note, 1_000_000)
	require.Greater(t, utf8.RuneCountInString(full), DefaultMaxLength)

	msg := RenderMessage(note, DefaultMaxLength)
	require.True(t, strings.HasSuffix(msg, truncationNotice))
	require.LessOrEqual(t, utf8.RuneCountInString(msg), DefaultMaxLength)

	body := strings.TrimSuffix(msg, truncationNotice)
	require.Equal(t, DefaultMaxLength-100, utf8.RuneCountInString(body))
	require.True(t, strings.HasPrefix(full, body))
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
