package domain

// UnlimitedUsage marks a UsageCredit without an upper bound.
const UnlimitedUsage = -1

// UsageCategoryStaticAds is the usage bucket consumed by static ad jobs.
const UsageCategoryStaticAds = "static_ads"

// UsageCredit is the server's view of a usage counter. Allowed is
// authoritative and is never recomputed from the numbers on the client.
type UsageCredit struct {
	Category     string `json:"category"`
	CurrentUsage int    `json:"current_usage"`
	Limit        int    `json:"limit"`
	Allowed      bool   `json:"allowed"`
}

// Unlimited reports whether the credit has no upper bound.
func (u UsageCredit) Unlimited() bool {
	return u.Limit < 0
}

// FailOpenUsage is used when the usage endpoint cannot be reached.
func FailOpenUsage(category string) UsageCredit {
	return UsageCredit{Category: category, Limit: UnlimitedUsage, Allowed: true}
}
