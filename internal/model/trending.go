package model

import "encoding/json"

// Types mirroring the remote search APIs consumed by the trending clients.
// These contracts are fixed by GitHub and the npm registry — we only decode
// the fields the app displays.

// TrendingRepo is one item of the GitHub repository search response.
// GitHub repository IDs are numeric; the subscription model keys repos by
// string ID, so the client formats this value before subscribing.
type TrendingRepo struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	Owner           RepoOwner `json:"owner"`
	HTMLURL         string    `json:"html_url"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Language        string    `json:"language"`
}

// RepoSearchResult is the envelope of GET /search/repositories.
type RepoSearchResult struct {
	TotalCount int            `json:"total_count"`
	Items      []TrendingRepo `json:"items"`
}

// NpmAuthor is the author object of an npm search result. The registry
// returns either an object or, for some older packages, a bare string.
type NpmAuthor struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts both {"name":"jane"} and "jane".
func (a *NpmAuthor) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Name)
	}
	type plain NpmAuthor
	return json.Unmarshal(data, (*plain)(a))
}

// NpmLinks holds the outbound URLs of an npm search result.
type NpmLinks struct {
	Npm        string `json:"npm"`
	Homepage   string `json:"homepage"`
	Repository string `json:"repository"`
}

// NpmPackage is the package object of one npm search result.
type NpmPackage struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Author      NpmAuthor `json:"author"`
	Links       NpmLinks  `json:"links"`
}

// NpmScoreDetail is the quality/popularity/maintenance breakdown.
type NpmScoreDetail struct {
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// NpmScore is the ranking score of one npm search result.
type NpmScore struct {
	Final  float64        `json:"final"`
	Detail NpmScoreDetail `json:"detail"`
}

// NpmSearchObject is one entry of the npm registry search response.
type NpmSearchObject struct {
	Package NpmPackage `json:"package"`
	Score   NpmScore   `json:"score"`
}

// NpmSearchResult is the envelope of GET /-/v1/search.
type NpmSearchResult struct {
	Total   int               `json:"total"`
	Objects []NpmSearchObject `json:"objects"`
}
