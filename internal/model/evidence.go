package model

// EvidenceItem is one unit of external information about a target, gathered
// by a search stage. Ephemeral: constructed fresh per pipeline run, never
// persisted standalone.
type EvidenceItem struct {
	Text        string `json:"text"`
	URL         string `json:"url,omitempty"`
	SourceLabel string `json:"source_label"`
	// PriorityRank is lower-is-better: official site < specialized platform
	// < map reviews < generic web.
	PriorityRank int    `json:"priority_rank"`
	OriginQuery  string `json:"origin_query"`
}
