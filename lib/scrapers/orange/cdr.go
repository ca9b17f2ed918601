package orange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cdrwatch-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrBadListing marks a CDR listing response the scraper could not map to
// the expected column set.
var ErrBadListing = errors.New("listing does not match the expected table layout")

// Records fetches the CDR listing for the logged-in session. The portal's
// DataTables JSON endpoint is tried first since it is faster and more
// reliable when present; otherwise the HTML table on the listing page is
// scraped. Row order is preserved exactly as the portal emits it.
//
// An empty listing is not an error, it yields an empty slice.
func (c *Client) Records(ctx context.Context) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "client:Records")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"start":  "0",
			"length": "50",
		}).
		Get(c.cdrPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch cdr listing")
		return nil, fmt.Errorf("fetch cdr listing: %w", err)
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "cdr listing request rejected")
		return nil, fmt.Errorf("cdr listing returned %d", res.StatusCode())
	}

	records, ok := parseListingJson(res.Body())
	if ok {
		span.SetAttributes(
			attribute.String("source", "json"),
			attribute.Int("rows", len(records)),
		)
		return records, nil
	}

	// not the JSON endpoint, scrape the page markup instead
	records, err = parseListingHtml(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("source", "html"),
		attribute.Int("rows", len(records)),
	)
	return records, nil
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func firstKey(row map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := row[k]
		if ok && text(v) != "" {
			return text(v)
		}
	}
	return ""
}

// parseListingJson handles the DataTables response shapes the portal is
// known to emit: {"data": [...]} or {"aaData": [...]}, where each row is
// either an array of column strings or a keyed object. Returns false when
// the body is not such a document.
func parseListingJson(body []byte) ([]Record, bool) {
	var payload map[string]json.RawMessage
	err := json.Unmarshal(body, &payload)
	if err != nil {
		return nil, false
	}

	raw, ok := payload["data"]
	if !ok {
		raw, ok = payload["aaData"]
	}
	if !ok {
		return nil, false
	}

	var rows []any
	err = json.Unmarshal(raw, &rows)
	if err != nil {
		return nil, false
	}

	records := []Record{}
	for _, r := range rows {
		switch row := r.(type) {
		case []any:
			rec := Record{}
			if len(row) > 0 {
				rec.Cli = text(row[0])
			}
			if len(row) > 1 {
				rec.To = text(row[1])
			}
			if len(row) > 2 {
				rec.Time = text(row[2])
			}
			if len(row) > 3 {
				rec.Duration = text(row[3])
			}
			if len(row) > 4 {
				rec.Type = text(row[4])
			}
			records = append(records, rec)
		case map[string]any:
			records = append(records, Record{
				Cli:      firstKey(row, "cli", "source", "caller", "from"),
				To:       firstKey(row, "to", "destination"),
				Time:     firstKey(row, "time", "timestamp", "start_time"),
				Duration: firstKey(row, "duration"),
				Type:     firstKey(row, "type", "status"),
			})
		}
	}
	return records, true
}

func parseListingHtml(body []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadListing, err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no table in listing page", ErrBadListing)
	}
	rowsSel := table.Find("tbody tr")
	if rowsSel.Length() == 0 {
		rowsSel = table.Find("tr")
	}

	records := []Record{}
	var badRow error
	rowsSel.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			// header row
			return
		}
		if cells.Length() == 1 && cells.First().AttrOr("colspan", "") != "" {
			// DataTables "no data available" placeholder
			return
		}
		if cells.Length() < 5 {
			badRow = fmt.Errorf(
				"%w: row has %d columns, want at least 5",
				ErrBadListing, cells.Length(),
			)
			return
		}

		column := func(i int) string {
			return htmlutil.CleanText(cells.Eq(i).Text())
		}
		records = append(records, Record{
			Cli:      column(0),
			To:       column(1),
			Time:     column(2),
			Duration: column(3),
			Type:     column(4),
		})
	})
	if badRow != nil {
		return nil, badRow
	}

	return records, nil
}
