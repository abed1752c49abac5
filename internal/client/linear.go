package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint é o endpoint GraphQL do Linear
	DefaultEndpoint = "https://api.linear.app/graphql"

	// RequestsPerHour limite conservador por usuário (Linear permite 1500/h por usuário)
	RequestsPerHour = 1200

	// RequestBurst rajada permitida por usuário
	RequestBurst = 20

	// DefaultTimeout timeout padrão para requisições
	DefaultTimeout = 30 * time.Second

	// PageSize tamanho da página nas consultas paginadas
	PageSize = 50

	// RetryMaxAttempts número máximo de tentativas por chamada
	RetryMaxAttempts = 3

	// RetryBackoff tempo de espera inicial entre retries
	RetryBackoff = 2 * time.Second
)

// Client é o cliente GraphQL para a API do Linear.
// O access token vem da sessão de cada usuário, por isso é passado por chamada.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiters   *tokenLimiters
	backoff    time.Duration
}

// NewClient cria um novo cliente Linear
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		limiters: newTokenLimiters(rate.Every(time.Hour/RequestsPerHour), RequestBurst),
		backoff: RetryBackoff,
	}
}

// graphQLRequest é o corpo enviado ao endpoint
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

const viewerQuery = `query Viewer {
  viewer { id name email }
}`

const teamsQuery = `query Teams($first: Int!, $after: String) {
  teams(first: $first, after: $after) {
    nodes { id name key }
    pageInfo { hasNextPage endCursor }
  }
}`

const projectsQuery = `query Projects($first: Int!, $after: String) {
  projects(first: $first, after: $after) {
    nodes { id name description state color progress }
    pageInfo { hasNextPage endCursor }
  }
}`

const teamProjectsQuery = `query TeamProjects($teamId: String!, $first: Int!, $after: String) {
  team(id: $teamId) {
    projects(first: $first, after: $after) {
      nodes { id name description state color progress }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const projectIssuesQuery = `query ProjectIssues($projectId: String!, $first: Int!, $after: String) {
  project(id: $projectId) {
    issues(first: $first, after: $after) {
      nodes { id identifier title state { name } }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const teamIssuesQuery = `query TeamIssues($teamId: String!, $first: Int!, $after: String) {
  team(id: $teamId) {
    issues(first: $first, after: $after) {
      nodes { id identifier title state { name } }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const organizationQuery = `query Organization {
  organization { id name urlKey logoUrl }
}`

// Viewer retorna o usuário dono do token
func (c *Client) Viewer(ctx context.Context, accessToken string) (*model.Viewer, error) {
	var data struct {
		Viewer model.Viewer `json:"viewer"`
	}

	if err := c.query(ctx, accessToken, "viewer", viewerQuery, nil, &data); err != nil {
		return nil, err
	}

	if data.Viewer.ID == "" {
		return nil, model.ErrInvalidResponse
	}

	return &data.Viewer, nil
}

// Teams lista os times visíveis para o usuário
func (c *Client) Teams(ctx context.Context, accessToken string) ([]model.Team, error) {
	var teams []model.Team

	err := c.paginate(ctx, func(after *string) (pageInfo, error) {
		var data struct {
			Teams struct {
				Nodes    []model.Team `json:"nodes"`
				PageInfo pageInfo     `json:"pageInfo"`
			} `json:"teams"`
		}

		vars := map[string]interface{}{"first": PageSize, "after": after}
		if err := c.query(ctx, accessToken, "teams", teamsQuery, vars, &data); err != nil {
			return pageInfo{}, err
		}

		teams = append(teams, data.Teams.Nodes...)
		return data.Teams.PageInfo, nil
	})

	return teams, err
}

// Projects lista os projetos visíveis. Com teamID, só os projetos do time.
func (c *Client) Projects(ctx context.Context, accessToken, teamID string) ([]model.Project, error) {
	type projectPage struct {
		Nodes    []model.Project `json:"nodes"`
		PageInfo pageInfo        `json:"pageInfo"`
	}

	var projects []model.Project

	err := c.paginate(ctx, func(after *string) (pageInfo, error) {
		vars := map[string]interface{}{"first": PageSize, "after": after}

		var page projectPage
		if teamID == "" {
			var data struct {
				Projects projectPage `json:"projects"`
			}
			if err := c.query(ctx, accessToken, "projects", projectsQuery, vars, &data); err != nil {
				return pageInfo{}, err
			}
			page = data.Projects
		} else {
			vars["teamId"] = teamID
			var data struct {
				Team *struct {
					Projects projectPage `json:"projects"`
				} `json:"team"`
			}
			if err := c.query(ctx, accessToken, "team_projects", teamProjectsQuery, vars, &data); err != nil {
				return pageInfo{}, err
			}
			if data.Team == nil {
				return pageInfo{}, model.ErrNotFound
			}
			page = data.Team.Projects
		}

		projects = append(projects, page.Nodes...)
		return page.PageInfo, nil
	})

	return projects, err
}

// issuePage é o formato comum das conexões de issues (projeto e time)
type issuePage struct {
	Nodes []struct {
		ID         string `json:"id"`
		Identifier string `json:"identifier"`
		Title      string `json:"title"`
		State      *struct {
			Name string `json:"name"`
		} `json:"state"`
	} `json:"nodes"`
	PageInfo pageInfo `json:"pageInfo"`
}

func (p issuePage) issues() []model.Issue {
	out := make([]model.Issue, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		issue := model.Issue{ID: n.ID, Identifier: n.Identifier, Title: n.Title}
		if n.State != nil {
			issue.State = n.State.Name
		}
		out = append(out, issue)
	}
	return out
}

// ProjectIssues busca todas as issues de um projeto com paginação automática
func (c *Client) ProjectIssues(ctx context.Context, accessToken, projectID string) ([]model.Issue, error) {
	var issues []model.Issue

	err := c.paginate(ctx, func(after *string) (pageInfo, error) {
		var data struct {
			Project *struct {
				Issues issuePage `json:"issues"`
			} `json:"project"`
		}

		vars := map[string]interface{}{"projectId": projectID, "first": PageSize, "after": after}
		if err := c.query(ctx, accessToken, "project_issues", projectIssuesQuery, vars, &data); err != nil {
			return pageInfo{}, err
		}
		if data.Project == nil {
			return pageInfo{}, model.ErrNotFound
		}

		issues = append(issues, data.Project.Issues.issues()...)
		return data.Project.Issues.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get(ctx).Debug().
		Str("project_id", projectID).
		Int("issues", len(issues)).
		Msg("Issues do projeto coletadas")

	return issues, nil
}

// TeamIssues busca todas as issues de um time, de qualquer projeto
func (c *Client) TeamIssues(ctx context.Context, accessToken, teamID string) ([]model.Issue, error) {
	var issues []model.Issue

	err := c.paginate(ctx, func(after *string) (pageInfo, error) {
		var data struct {
			Team *struct {
				Issues issuePage `json:"issues"`
			} `json:"team"`
		}

		vars := map[string]interface{}{"teamId": teamID, "first": PageSize, "after": after}
		if err := c.query(ctx, accessToken, "team_issues", teamIssuesQuery, vars, &data); err != nil {
			return pageInfo{}, err
		}
		if data.Team == nil {
			return pageInfo{}, model.ErrNotFound
		}

		issues = append(issues, data.Team.Issues.issues()...)
		return data.Team.Issues.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get(ctx).Debug().
		Str("team_id", teamID).
		Int("issues", len(issues)).
		Msg("Issues do time coletadas")

	return issues, nil
}

// Organization retorna o workspace do usuário
func (c *Client) Organization(ctx context.Context, accessToken string) (*model.Workspace, error) {
	var data struct {
		Organization *model.Workspace `json:"organization"`
	}

	if err := c.query(ctx, accessToken, "organization", organizationQuery, nil, &data); err != nil {
		return nil, err
	}

	if data.Organization == nil || data.Organization.ID == "" {
		return nil, model.ErrInvalidResponse
	}

	return data.Organization, nil
}

// paginate chama fetch até não haver próxima página
func (c *Client) paginate(ctx context.Context, fetch func(after *string) (pageInfo, error)) error {
	var after *string

	for {
		info, err := fetch(after)
		if err != nil {
			return err
		}

		if !info.HasNextPage || info.EndCursor == "" {
			return nil
		}

		cursor := info.EndCursor
		after = &cursor

		if ctx.Err() != nil {
			return model.ErrTimeout
		}
	}
}

// query executa uma operação GraphQL com rate limit, retry e métricas
func (c *Client) query(ctx context.Context, accessToken, operation, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("serializar query: %w", err)
	}

	err = c.doRequestWithRetry(ctx, accessToken, operation, body, out)
	metrics.Get().IncrementLinearCall(operation, err == nil)
	return err
}

// doRequestWithRetry executa request com retry e backoff exponencial.
// Toda tentativa, inclusive retry, passa pelo limiter do usuário.
func (c *Client) doRequestWithRetry(ctx context.Context, accessToken, operation string, body []byte, out interface{}) error {
	var lastErr error
	backoff := c.backoff
	limiter := c.limiters.get(accessToken)

	for attempt := 1; attempt <= RetryMaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doRequest(ctx, accessToken, body, out)
		if err == nil {
			return nil
		}

		lastErr = err

		// Se é erro de contexto cancelado, não faz retry
		if ctx.Err() != nil {
			return err
		}

		// Erros definitivos não são repetidos
		if errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrUnauthorized) ||
			errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidResponse) {
			return err
		}

		if attempt < RetryMaxAttempts {
			logger.Get(ctx).Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Int("max_attempts", RetryMaxAttempts).
				Dur("backoff", backoff).
				Err(err).
				Msg("Chamada ao Linear falhou, aguardando retry")

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return model.ErrTimeout
			}
		}
	}

	return lastErr
}

// doRequest executa uma requisição HTTP para a API do Linear
func (c *Client) doRequest(ctx context.Context, accessToken string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("criar request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.ErrTimeout
		}
		return fmt.Errorf("executar request: %w", err)
	}
	defer resp.Body.Close()

	// Tratamento de erros HTTP
	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest:
		// O Linear devolve erros GraphQL com 200 ou 400
	case http.StatusTooManyRequests:
		return model.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.ErrUnauthorized
	case http.StatusNotFound:
		return model.ErrNotFound
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidResponse, err)
	}

	if len(gqlResp.Errors) > 0 {
		return classifyGraphQLError(gqlResp.Errors[0])
	}

	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return model.ErrInvalidResponse
	}

	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidResponse, err)
	}

	return nil
}

// classifyGraphQLError converte o erro GraphQL no erro sentinela correspondente
func classifyGraphQLError(e graphQLError) error {
	switch strings.ToUpper(e.Extensions.Code) {
	case "AUTHENTICATION_ERROR", "FORBIDDEN":
		return model.ErrUnauthorized
	case "RATELIMITED":
		return model.ErrRateLimited
	}

	if strings.Contains(strings.ToLower(e.Message), "not found") {
		return model.ErrNotFound
	}

	return fmt.Errorf("%w: %s", model.ErrInvalidResponse, e.Message)
}
