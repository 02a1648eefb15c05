package orders

import (
	"net/url"
	"strings"
	"time"

	"amazonorders/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type Seller struct {
	Name string
	Link string
}

type Item struct {
	Title     string
	Link      string
	Price     string
	Condition string
	Seller    Seller
	// zero when the return window is not mentioned on the card
	ReturnEligibleDate time.Time
}

type Shipment struct {
	Items          []Item
	DeliveryStatus string
	TrackingLink   string
}

type Order struct {
	Number     string
	Link       string
	Total      string
	Recipient  string
	PlacedDate time.Time
	Shipments  []Shipment
	// flattened convenience view over all shipments
	Items []Item
}

const placedDateLayout = "January 2, 2006"
const returnDateLayout = "Jan 2, 2006"

// The storefront reorders, renames and omits markup at will, so absent
// elements yield zero values rather than errors.

func parseOrder(base *url.URL, sel *goquery.Selection) Order {
	o := Order{}

	detailsLink := sel.Find("a.yohtmlc-order-details-link").First()
	o.Link = htmlutil.ResolveHref(base, detailsLink.AttrOr("href", ""))
	if o.Link != "" {
		if parsed, err := url.Parse(o.Link); err == nil {
			o.Number = parsed.Query().Get("orderID")
		}
	}
	if o.Number == "" {
		o.Number = htmlutil.CleanText(sel.Find("bdi[dir=ltr]").First())
	}

	sel.Find("div.a-column").Each(func(_ int, col *goquery.Selection) {
		rows := col.Find("div.a-row")
		if rows.Length() < 2 {
			return
		}
		label := strings.ToLower(htmlutil.CleanText(rows.Eq(0)))
		value := htmlutil.CleanText(rows.Eq(1))
		switch {
		case strings.Contains(label, "order placed"):
			if t, err := time.Parse(placedDateLayout, value); err == nil {
				o.PlacedDate = t
			}
		case strings.Contains(label, "total"):
			o.Total = strings.TrimPrefix(value, "$")
		case strings.Contains(label, "ship to"):
			o.Recipient = value
		}
	})

	shipments := sel.Find("div.shipment")
	if shipments.Length() > 0 {
		shipments.Each(func(_ int, shipment *goquery.Selection) {
			o.Shipments = append(o.Shipments, parseShipment(base, shipment))
		})
		for _, shipment := range o.Shipments {
			o.Items = append(o.Items, shipment.Items...)
		}
		return o
	}

	sel.Find("div.yohtmlc-item").Each(func(_ int, item *goquery.Selection) {
		o.Items = append(o.Items, parseItem(base, item))
	})
	return o
}

func parseShipment(base *url.URL, sel *goquery.Selection) Shipment {
	s := Shipment{}

	sel.Find("div.yohtmlc-item").Each(func(_ int, item *goquery.Selection) {
		s.Items = append(s.Items, parseItem(base, item))
	})

	info := sel.Find("div.js-shipment-info-container").First()
	if info.Length() > 0 {
		s.DeliveryStatus = htmlutil.CleanText(info.Find("div.a-row").First())
	}

	track := sel.Find("span.track-package-button").First()
	if track.Length() > 0 {
		s.TrackingLink = htmlutil.ResolveHref(base, track.Find("a").First().AttrOr("href", ""))
	}

	return s
}

func parseItem(base *url.URL, sel *goquery.Selection) Item {
	item := Item{}

	anchor := sel.Find("a").First()
	item.Title = htmlutil.CleanText(anchor)
	item.Link = htmlutil.ResolveHref(base, anchor.AttrOr("href", ""))

	sel.Find("div").Each(func(_ int, div *goquery.Selection) {
		text := htmlutil.CleanText(div)
		switch {
		case item.Price == "" && strings.HasPrefix(text, "$"):
			item.Price = strings.TrimPrefix(text, "$")
		case item.Seller == (Seller{}) && strings.Contains(text, "Sold by:"):
			item.Seller = parseSeller(base, div)
		case item.Condition == "" && strings.Contains(text, "Condition:"):
			item.Condition = strings.TrimSpace(strings.SplitN(text, "Condition:", 2)[1])
		case item.ReturnEligibleDate.IsZero() && strings.Contains(text, "Return"):
			item.ReturnEligibleDate = parseReturnDate(text)
		}
	})

	return item
}

func parseSeller(base *url.URL, sel *goquery.Selection) Seller {
	s := Seller{}
	text := htmlutil.CleanText(sel)
	s.Name = strings.TrimSpace(strings.SplitN(text, "Sold by:", 2)[1])

	anchor := sel.Find("a").First()
	if anchor.Length() > 0 {
		s.Link = htmlutil.ResolveHref(base, anchor.AttrOr("href", ""))
		s.Name = htmlutil.CleanText(anchor)
	}
	return s
}

// The return window renders either as "eligible through <date>" or
// "window closed on <date>".
func parseReturnDate(text string) time.Time {
	splitStr := "through "
	if strings.Contains(text, "closed on ") {
		splitStr = "closed on "
	}
	if !strings.Contains(text, splitStr) {
		return time.Time{}
	}
	dateStr := strings.TrimSpace(strings.SplitN(text, splitStr, 2)[1])
	t, err := time.Parse(returnDateLayout, dateStr)
	if err != nil {
		return time.Time{}
	}
	return t
}
