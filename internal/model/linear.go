package model

// Viewer representa o usuário autenticado no Linear
type Viewer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Team representa um time do Linear
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Project representa um projeto do Linear
type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	State       string  `json:"state"`
	Color       string  `json:"color,omitempty"`
	Progress    float64 `json:"progress"`
}

// Issue representa uma issue do Linear.
// Só os campos necessários para exibir a tarefa ao lado da estimativa.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	State      string `json:"state"`
}

// Workspace é a organização do Linear do usuário.
// As tags seguem os nomes do GraphQL para decodificar a resposta direto.
type Workspace struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URLKey  string `json:"urlKey"`
	LogoURL string `json:"logoUrl,omitempty"`
}
