package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ItemFilters enumerates the recognized listing filters. Zero values are
// omitted from the query. Status defaults to "ativo" on the backend; pass
// StatusAll to see everything.
type ItemFilters struct {
	Type     string // "perdido" or "encontrado"
	Category string
	Block    string
	Query    string // free-text search over title, description, place
	Status   string
	Priority *bool
	Ordering string // e.g. "-data_postagem", "visualizacoes"
	Page     int
}

func (f ItemFilters) values() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("tipo", f.Type)
	set("categoria", f.Category)
	set("bloco", f.Block)
	set("q", f.Query)
	set("status", f.Status)
	set("ordering", f.Ordering)
	if f.Priority != nil {
		q.Set("prioridade", strconv.FormatBool(*f.Priority))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	return q
}

func (c *Client) Items(ctx context.Context, filters ItemFilters) (*ItemsPage, error) {
	var page ItemsPage
	if err := c.getJSON(ctx, "/itens/", filters.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Item(ctx context.Context, id int64) (*ItemDetail, error) {
	var item ItemDetail
	if err := c.getJSON(ctx, fmt.Sprintf("/itens/%d/", id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// MyItems lists the items posted by the authenticated user, whatever
// their status.
func (c *Client) MyItems(ctx context.Context) (*ItemsPage, error) {
	var page ItemsPage
	if err := c.getJSON(ctx, "/itens/meus_itens/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) RecentItems(ctx context.Context, limit int) ([]Item, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limite", strconv.Itoa(limit))
	}
	var items []Item
	if err := c.getJSON(ctx, "/itens/itens_recentes/", q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Photo is an image attached to an item. Data is held in memory so the
// request body can be replayed after a token refresh.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

// ItemParams carries the writable item fields. Empty strings are left
// out of the form, which on PATCH means "unchanged".
type ItemParams struct {
	Title        string
	Description  string
	Category     string
	Type         string
	Block        string
	Place        string
	OccurredAt   time.Time
	ContactPhone string
	ContactEmail string
	Photo        *Photo
}

func (p ItemParams) fields() map[string]string {
	fields := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("titulo", p.Title)
	set("descricao", p.Description)
	set("categoria", p.Category)
	set("tipo", p.Type)
	set("bloco", p.Block)
	set("local_especifico", p.Place)
	set("telefone_contato", p.ContactPhone)
	set("email_contato", p.ContactEmail)
	if !p.OccurredAt.IsZero() {
		fields["data_ocorrencia"] = p.OccurredAt.Format(time.RFC3339)
	}
	return fields
}

// CreateItem posts a new item. The body is always a multipart form, the
// same way the backend expects uploads from the mobile app.
func (c *Client) CreateItem(ctx context.Context, params ItemParams) (*Item, error) {
	var item Item
	if err := c.sendMultipart(ctx, http.MethodPost, "/itens/", params.fields(), params.Photo, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem patches an existing item; only the fields present in params
// are touched.
func (c *Client) UpdateItem(ctx context.Context, id int64, params ItemParams) (*Item, error) {
	var item Item
	path := fmt.Sprintf("/itens/%d/", id)
	if err := c.sendMultipart(ctx, http.MethodPatch, path, params.fields(), params.Photo, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/itens/%d/", id), nil, nil)
}

// MarkResolved is an owner-only action.
func (c *Client) MarkResolved(ctx context.Context, id int64) (*Item, error) {
	var item Item
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/itens/%d/marcar_resolvido/", id), struct{}{}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// AddView bumps the view counter and returns the new value.
func (c *Client) AddView(ctx context.Context, id int64) (int64, error) {
	var resp struct {
		Views int64 `json:"visualizacoes"`
	}
	path := fmt.Sprintf("/itens/%d/incrementar_visualizacoes/", id)
	if err := c.sendJSON(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.Views, nil
}

func (c *Client) AddComment(ctx context.Context, itemID int64, text string) (*Comment, error) {
	body := map[string]any{"item": itemID, "texto": text}
	var comment Comment
	if err := c.sendJSON(ctx, http.MethodPost, "/comentarios/", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) Comments(ctx context.Context, itemID int64) ([]Comment, error) {
	q := url.Values{}
	q.Set("item_id", strconv.FormatInt(itemID, 10))
	var comments []Comment
	if err := c.getJSON(ctx, "/comentarios/", q, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateContact sends a message to the owner of an item.
func (c *Client) CreateContact(ctx context.Context, itemID int64, message string) (*Contact, error) {
	body := map[string]any{"item": itemID, "mensagem": message}
	var contact Contact
	if err := c.sendJSON(ctx, http.MethodPost, "/contatos/", body, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ReceivedContacts lists messages other users sent about the
// authenticated user's items, newest first.
func (c *Client) ReceivedContacts(ctx context.Context) (*ContactsPage, error) {
	var page ContactsPage
	if err := c.getJSON(ctx, "/contatos/contatos_recebidos/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SentContacts(ctx context.Context) (*ContactsPage, error) {
	var page ContactsPage
	if err := c.getJSON(ctx, "/contatos/contatos_enviados/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) MarkContactSeen(ctx context.Context, contactID int64) (*Contact, error) {
	body := map[string]bool{"visualizado": true}
	var contact Contact
	if err := c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/contatos/%d/", contactID), body, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// Categories is public reference data: no token needed.
func (c *Client) Categories(ctx context.Context) ([]Choice, error) {
	var choices []Choice
	if err := c.getJSON(ctx, "/categorias/", nil, &choices); err != nil {
		return nil, err
	}
	return choices, nil
}

// Blocks lists campus blocks and places. Public as well.
func (c *Client) Blocks(ctx context.Context) ([]Choice, error) {
	var choices []Choice
	if err := c.getJSON(ctx, "/blocos/", nil, &choices); err != nil {
		return nil, err
	}
	return choices, nil
}
