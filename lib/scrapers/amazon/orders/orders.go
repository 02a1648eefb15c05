// Package orders converts authenticated order-history pages into typed
// records. It sits strictly downstream of the auth flow: every operation
// requires a session that already logged in.
package orders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"amazonorders/lib/scrapers/amazon"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/amazon/orders")

var NotAuthenticated = errors.New("the session is not authenticated, call Login first")

type HistoryRequest struct {
	// which order-history year bucket to fetch, e.g. 2024
	Year int
	// offset into the year bucket, 10 orders per page
	StartIndex int
	// keep fetching while the pagination widget offers a next page
	FollowPagination bool
}

// History fetches one or more order-history pages and parses every order
// card on them.
func History(ctx context.Context, s *amazon.Session, req HistoryRequest) ([]Order, error) {
	ctx, span := tracer.Start(ctx, "orders:History")
	defer span.End()

	if !s.IsAuthenticated() {
		span.SetStatus(codes.Error, NotAuthenticated.Error())
		return nil, NotAuthenticated
	}

	query := url.Values{}
	query.Set("timeFilter", fmt.Sprintf("year-%d", req.Year))
	query.Set("startIndex", strconv.Itoa(req.StartIndex))

	var result []Order
	endpoint := amazon.OrderHistoryPath
	opts := &amazon.RequestOptions{QueryParams: query}
	for {
		_, err := s.Get(ctx, endpoint, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch order history")
			return nil, err
		}

		base, err := url.Parse(s.LastResponseUrl())
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		result = append(result, ParseHistory(s.LastDocument(), base)...)

		if !req.FollowPagination {
			break
		}
		next := nextPageLink(s.LastDocument(), base)
		if next == "" {
			break
		}
		endpoint = next
		opts = nil
	}

	return result, nil
}

// ParseHistory extracts every order card from an order-history document.
// Exposed separately so canned pages can be parsed without a session.
func ParseHistory(doc *goquery.Document, base *url.URL) []Order {
	if doc == nil {
		return nil
	}
	var result []Order
	doc.Find("div.order, div.order-card").Each(func(_ int, card *goquery.Selection) {
		result = append(result, parseOrder(base, card))
	})
	return result
}

func nextPageLink(doc *goquery.Document, base *url.URL) string {
	next := doc.Find("ul.a-pagination li.a-last a").First()
	if next.Length() == 0 {
		return ""
	}
	href := next.AttrOr("href", "")
	if href == "" {
		return ""
	}
	link, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(link).String()
}
