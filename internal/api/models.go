package api

import "time"

// Item types as the backend spells them.
const (
	TypeLost  = "perdido"
	TypeFound = "encontrado"
)

// Item statuses.
const (
	StatusActive   = "ativo"
	StatusResolved = "resolvido"
	StatusSpam     = "spam"
	StatusExpired  = "expirado"
	StatusAll      = "todos"
)

type User struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	DateJoined       string `json:"date_joined,omitempty"`
	PostedItems      int64  `json:"itens_postados_count,omitempty"`
	ReceivedContacts int64  `json:"contatos_recebidos_count,omitempty"`
}

// LoginResponse is the token issuance payload. Besides the pair it carries
// a minimal identity so the app can greet the user before users/me/ answers.
type LoginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	IsStaff  bool   `json:"is_staff"`
}

type Item struct {
	ID              int64      `json:"id"`
	Title           string     `json:"titulo"`
	Description     string     `json:"descricao"`
	Category        string     `json:"categoria"`
	CategoryDisplay string     `json:"categoria_display"`
	Type            string     `json:"tipo"`
	TypeDisplay     string     `json:"tipo_display"`
	Block           string     `json:"bloco"`
	BlockDisplay    string     `json:"bloco_display"`
	Place           string     `json:"local_especifico,omitempty"`
	PhotoURL        string     `json:"foto,omitempty"`
	PostedAt        time.Time  `json:"data_postagem"`
	OccurredAt      time.Time  `json:"data_ocorrencia"`
	UpdatedAt       *time.Time `json:"data_atualizacao,omitempty"`
	OwnerID         int64      `json:"usuario"`
	OwnerName       string     `json:"usuario_nome"`
	Status          string     `json:"status"`
	StatusDisplay   string     `json:"status_display"`
	ContactPhone    string     `json:"telefone_contato,omitempty"`
	ContactEmail    string     `json:"email_contato,omitempty"`
	Views           int64      `json:"visualizacoes"`
	Priority        bool       `json:"prioridade"`
	SincePosted     string     `json:"tempo_desde_postagem,omitempty"`
}

// ItemDetail is the retrieve serializer: the item plus its comments and
// the number of contacts it got.
type ItemDetail struct {
	Item
	Comments     []Comment `json:"comentarios"`
	ContactCount int64     `json:"contatos_count"`
}

type Comment struct {
	ID       int64     `json:"id"`
	ItemID   int64     `json:"item"`
	UserID   int64     `json:"usuario"`
	UserName string    `json:"usuario_nome"`
	Text     string    `json:"texto"`
	PostedAt time.Time `json:"data_comentario"`
}

type Contact struct {
	ID       int64     `json:"id"`
	ItemID   int64     `json:"item"`
	UserID   int64     `json:"usuario_interessado"`
	UserName string    `json:"usuario_interessado_nome"`
	Message  string    `json:"mensagem"`
	SentAt   time.Time `json:"data_contato"`
	Seen     bool      `json:"visualizado"`
}

// Choice is a reference-data entry (category or campus block).
type Choice struct {
	ID   string `json:"id"`
	Name string `json:"nome"`
}

// TokenData describes one outstanding refresh token of the current user.
// The token field is truncated by the backend.
type TokenData struct {
	ID          int64  `json:"id"`
	JTI         string `json:"jti"`
	Token       string `json:"token"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
	Blacklisted bool   `json:"blacklisted"`
}

type TokensPage struct {
	Count  int64       `json:"count"`
	Tokens []TokenData `json:"tokens"`
}

type ItemsPage struct {
	Count   int64  `json:"count"`
	Results []Item `json:"results"`
}

type ContactsPage struct {
	Count   int64     `json:"count"`
	Results []Contact `json:"results"`
}
