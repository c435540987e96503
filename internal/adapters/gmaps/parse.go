package gmaps

import (
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"review_insights/internal/domain"
)

// Review card selectors of the Maps place page.
const (
	selReview     = `div.jftiEf[data-review-id]`
	selUsername   = `.d4r55`
	selCaption    = `.wiI7pd`
	selRating     = `span.kvMYJc`
	selRelDate    = `.rsqaWe`
	selUserInfo   = `.RfnDt`
	selUserButton = `button.WEBjve`
)

// ParseReviews extracts raw review records from the review feed HTML.
// Every record is stamped with retrievedAt. Cards are de-duplicated by id.
func ParseReviews(r io.Reader, retrievedAt time.Time) ([]domain.RawReviewRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	stamp := retrievedAt.UTC().Format(time.RFC3339Nano)
	seen := map[string]struct{}{}
	var out []domain.RawReviewRecord

	doc.Find(selReview).Each(func(_ int, card *goquery.Selection) {
		id, _ := card.Attr("data-review-id")
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		rec := domain.RawReviewRecord{
			"id_review":      id,
			"caption":        text(card.Find(selCaption).First()),
			"relative_date":  text(card.Find(selRelDate).First()),
			"username":       text(card.Find(selUsername).First()),
			"n_review_user":  text(card.Find(selUserInfo).First()),
			"retrieval_date": stamp,
		}
		if label, ok := card.Find(selRating).First().Attr("aria-label"); ok {
			rec["rating"] = strings.TrimSpace(label)
		}
		if href, ok := card.Find(selUserButton).First().Attr("data-href"); ok {
			rec["url_user"] = strings.TrimSpace(href)
		}
		out = append(out, rec)
	})
	return out, nil
}

// text collapses whitespace, including non-breaking spaces.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
