package orders

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"amazonorders/lib/scrapers/amazon"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const historyPage = `<html><body>
<div class="order-card">
	<div class="a-column">
		<div class="a-row">Order placed</div>
		<div class="a-row">January 5, 2024</div>
	</div>
	<div class="a-column">
		<div class="a-row">Total</div>
		<div class="a-row">$42.50</div>
	</div>
	<div class="a-column">
		<div class="a-row">Ship to</div>
		<div class="a-row">Jane Doe</div>
	</div>
	<a class="yohtmlc-order-details-link" href="/gp/css/order-details?orderID=111-2223334-5556667">View order details</a>
	<div class="shipment">
		<div class="js-shipment-info-container">
			<div class="a-row">Delivered February 8</div>
		</div>
		<div class="yohtmlc-item">
			<a href="/dp/B0CABLE">USB-C Cable, 6ft</a>
			<div>$12.99</div>
			<div>Sold by: <a href="/sp?seller=CABLECO">CableCo</a></div>
			<div>Return eligible through Feb 12, 2024</div>
		</div>
		<span class="track-package-button"><a href="/progress-tracker/package?id=1">Track package</a></span>
	</div>
</div>
<div class="order">
	<div class="a-column">
		<div class="a-row">Order placed</div>
		<div class="a-row">March 20, 2024</div>
	</div>
	<div class="a-column">
		<div class="a-row">Total</div>
		<div class="a-row">$7.00</div>
	</div>
	<span><bdi dir="ltr">222-3334445-6667778</bdi></span>
	<div class="yohtmlc-item">
		<a href="/dp/B0USED">Paperback, some novel</a>
		<div>$7.00</div>
		<div>Condition: Used - Very Good</div>
	</div>
</div>
</body></html>`

func parseTestPage(t *testing.T, page string) []Order {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(page)))
	require.NoError(t, err)
	base, err := url.Parse("https://www.amazon.com/gp/css/order-history")
	require.NoError(t, err)
	return ParseHistory(doc, base)
}

func TestParseHistory(t *testing.T) {
	result := parseTestPage(t, historyPage)

	expected := []Order{
		{
			Number:     "111-2223334-5556667",
			Link:       "https://www.amazon.com/gp/css/order-details?orderID=111-2223334-5556667",
			Total:      "42.50",
			Recipient:  "Jane Doe",
			PlacedDate: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
			Shipments: []Shipment{{
				Items: []Item{{
					Title:              "USB-C Cable, 6ft",
					Link:               "https://www.amazon.com/dp/B0CABLE",
					Price:              "12.99",
					Seller:             Seller{Name: "CableCo", Link: "https://www.amazon.com/sp?seller=CABLECO"},
					ReturnEligibleDate: time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC),
				}},
				DeliveryStatus: "Delivered February 8",
				TrackingLink:   "https://www.amazon.com/progress-tracker/package?id=1",
			}},
			Items: []Item{{
				Title:              "USB-C Cable, 6ft",
				Link:               "https://www.amazon.com/dp/B0CABLE",
				Price:              "12.99",
				Seller:             Seller{Name: "CableCo", Link: "https://www.amazon.com/sp?seller=CABLECO"},
				ReturnEligibleDate: time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC),
			}},
		},
		{
			// no details link on this card, the number comes from the bdi
			// fallback and no shipment grouping is present
			Number:     "222-3334445-6667778",
			Total:      "7.00",
			PlacedDate: time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC),
			Items: []Item{{
				Title:     "Paperback, some novel",
				Link:      "https://www.amazon.com/dp/B0USED",
				Price:     "7.00",
				Condition: "Used - Very Good",
			}},
		},
	}

	if diff := cmp.Diff(expected, result); diff != "" {
		t.Fatalf("parsed orders mismatch (-expected +got):\n%s", diff)
	}
}

func TestParseHistoryEmpty(t *testing.T) {
	result := parseTestPage(t, `<html><body><p>You have not placed any orders.</p></body></html>`)
	require.Empty(t, result)
}

func newAuthenticatedSession(t *testing.T, server *httptest.Server) *amazon.Session {
	t.Helper()
	s, err := amazon.NewSession(context.Background(), amazon.SessionOptions{
		Username:      "some-username",
		Password:      "some-password",
		CookieJarPath: filepath.Join(t.TempDir(), "cookies.json"),
		BaseUrl:       server.URL,
	})
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background()))
	return s
}

func TestHistoryNotAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s, err := amazon.NewSession(context.Background(), amazon.SessionOptions{
		CookieJarPath: filepath.Join(t.TempDir(), "cookies.json"),
		BaseUrl:       server.URL,
	})
	require.NoError(t, err)

	_, err = History(context.Background(), s, HistoryRequest{Year: 2024})
	require.ErrorIs(t, err, NotAuthenticated)
}

func TestHistoryPagination(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/gp/sign-in.html", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session-token", Value: "token", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "x-main", Value: "main", Path: "/"})
		fmt.Fprint(w, `<html><body><div id="nav-item-signout">Sign Out</div></body></html>`)
	})
	mux.HandleFunc("/gp/css/order-history", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		require.Equal(t, "year-2024", query.Get("timeFilter"))

		if query.Get("startIndex") == "0" {
			fmt.Fprint(w, historyPage+`
				<ul class="a-pagination">
					<li class="a-last"><a href="/gp/css/order-history?timeFilter=year-2024&startIndex=10">Next</a></li>
				</ul>`)
			return
		}
		require.Equal(t, "10", query.Get("startIndex"))
		fmt.Fprint(w, `<html><body>
			<div class="order-card">
				<span><bdi dir="ltr">333-4445556-7778889</bdi></span>
			</div>
			<ul class="a-pagination"><li class="a-last a-disabled">Next</li></ul>
			</body></html>`)
	})

	s := newAuthenticatedSession(t, server)
	result, err := History(context.Background(), s, HistoryRequest{
		Year:             2024,
		FollowPagination: true,
	})
	require.NoError(t, err)
	require.Len(t, result, 3)
	require.Equal(t, "333-4445556-7778889", result[2].Number)
}

func TestHistorySinglePage(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	pages := 0
	mux.HandleFunc("/gp/sign-in.html", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session-token", Value: "token", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "x-main", Value: "main", Path: "/"})
		fmt.Fprint(w, `<html><body><div id="nav-item-signout">Sign Out</div></body></html>`)
	})
	mux.HandleFunc("/gp/css/order-history", func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprint(w, historyPage+`
			<ul class="a-pagination">
				<li class="a-last"><a href="/gp/css/order-history?startIndex=10">Next</a></li>
			</ul>`)
	})

	s := newAuthenticatedSession(t, server)
	result, err := History(context.Background(), s, HistoryRequest{Year: 2024})
	require.NoError(t, err)
	// the next-page link is ignored unless pagination following is requested
	require.Len(t, result, 2)
	require.Equal(t, 1, pages)
}
