package handlers

import "github.com/nsvirk/gitcoderapi/internal/service"

// repoParams are the repository coordinates every repository scoped request carries
type repoParams struct {
	Owner string `json:"owner" query:"owner"`
	Repo  string `json:"repo" query:"repo"`
}

func (p repoParams) ref() service.RepoRef {
	return service.RepoRef{Owner: p.Owner, Repo: p.Repo}
}
