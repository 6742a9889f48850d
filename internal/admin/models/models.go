package models

// Overview is the dashboard headline numbers.
type Overview struct {
	Registrants     int
	VerifiedEmails  int
	Paying          int
	Referrals       int
	Conversions     int
	ActiveCredits   int
	ServiceVerified int
	Sessions30d     int
}

// CampaignResult reports one campaign send.
type CampaignResult struct {
	Segment    string
	Recipients int
	Sent       int
	Failed     int
}

// ReferralCounts is the slice of referral ledger totals the dashboard shows.
type ReferralCounts struct {
	Referrals     int
	Conversions   int
	ActiveCredits int
}
