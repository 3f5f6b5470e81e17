package checkout

import (
	"errors"
	"fmt"
	"fortunex-api/internal/config"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownPlan = errors.New("unknown plan")

type Plan struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
	// Period is zero for one-off purchases.
	Period  time.Duration `json:"-"`
	LinkURL string        `json:"-"`
}

// Price renders the plan price, e.g. €7.10.
func (p Plan) Price() string {
	amount := decimal.NewFromInt(p.Cents).Shift(-2)
	symbol := "€"
	if p.Currency != "EUR" {
		symbol = p.Currency + " "
	}
	return symbol + amount.StringFixed(2)
}

func (p Plan) Recurring() bool {
	return p.Period > 0
}

type Catalog struct {
	plans     []Plan
	promoCode string
}

func NewCatalog(cfg config.Checkout) *Catalog {
	return &Catalog{
		plans: []Plan{
			{ID: "monthly", Label: "Pro Monthly", Cents: 710, Currency: "EUR", Period: 30 * 24 * time.Hour, LinkURL: cfg.MonthlyURL},
			{ID: "annual", Label: "Pro Annual", Cents: 7100, Currency: "EUR", Period: 365 * 24 * time.Hour, LinkURL: cfg.AnnualURL},
			{ID: "lifetime", Label: "Lifetime", Cents: 10700, Currency: "EUR", LinkURL: cfg.LifetimeURL},
		},
		promoCode: cfg.PromoCode,
	}
}

func (c *Catalog) Plans() []Plan {
	return append([]Plan(nil), c.plans...)
}

func (c *Catalog) Plan(id string) (Plan, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// BuildURL returns the hosted checkout link for plan with the client
// reference attached. The provider echoes client_reference_id back in the
// checkout.session.completed event.
func (c *Catalog) BuildURL(planID, refSource, myRef string) (string, error) {
	plan, err := c.Plan(planID)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(plan.LinkURL)
	if err != nil {
		return "", fmt.Errorf("parse checkout link for %s: %w", plan.ID, err)
	}

	q := u.Query()
	q.Set("client_reference_id", Reference{Plan: plan.ID, RefSource: refSource, ClientRef: myRef}.String())
	if c.promoCode != "" && refSource != "" {
		q.Set("prefilled_promo_code", c.promoCode)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Reference is the payload packed into client_reference_id:
// plan=<plan>|ref=<source or none>|my=<client ref>.
type Reference struct {
	Plan      string
	RefSource string
	ClientRef string
}

func (r Reference) String() string {
	src := r.RefSource
	if src == "" {
		src = "none"
	}
	return fmt.Sprintf("plan=%s|ref=%s|my=%s", url.QueryEscape(r.Plan), src, r.ClientRef)
}

func ParseReference(s string) (Reference, error) {
	var r Reference
	for _, part := range strings.Split(s, "|") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "plan":
			if unescaped, err := url.QueryUnescape(v); err == nil {
				v = unescaped
			}
			r.Plan = v
		case "ref":
			if v != "none" {
				r.RefSource = v
			}
		case "my":
			r.ClientRef = v
		}
	}

	if r.Plan == "" || r.ClientRef == "" {
		return Reference{}, fmt.Errorf("malformed client reference %q", s)
	}
	return r, nil
}
