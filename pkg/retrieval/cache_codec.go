package retrieval

import "encoding/json"

type cachedSearch struct {
	Results []SearchResult `json:"results"`
	Status  SearchStatus   `json:"status"`
}

func encodeCachedSearch(results []SearchResult, status SearchStatus) ([]byte, bool) {
	b, err := json.Marshal(cachedSearch{Results: results, Status: status})
	if err != nil {
		return nil, false
	}
	return b, true
}

func decodeCachedSearch(b []byte) ([]SearchResult, SearchStatus, bool) {
	var cs cachedSearch
	if err := json.Unmarshal(b, &cs); err != nil {
		return nil, "", false
	}
	return cs.Results, cs.Status, true
}
