// internal/model/analytics.go
package model

// MaxCampaignHistory caps how many per-campaign summaries the rolling
// analytics aggregate retains.
const MaxCampaignHistory = 15

// Analytics is the rolling aggregate folded after every campaign and reply.
type Analytics struct {
	TotalSent    int               `json:"total_sent"`
	TotalFailed  int               `json:"total_failed"`
	TotalReplies int               `json:"total_replies"`
	Campaigns    []CampaignSummary `json:"campaigns"`
}

// Fold merges one finished campaign into the aggregate, trimming history to
// the newest MaxCampaignHistory entries.
func (a *Analytics) Fold(summary CampaignSummary) {
	a.TotalSent += summary.Sent
	a.TotalFailed += summary.Failed
	a.Campaigns = append(a.Campaigns, summary)
	if len(a.Campaigns) > MaxCampaignHistory {
		a.Campaigns = a.Campaigns[len(a.Campaigns)-MaxCampaignHistory:]
	}
}
