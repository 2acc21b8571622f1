package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/pechorka/lostfound/internal/api"
	"github.com/pechorka/lostfound/internal/session"
	"github.com/pechorka/lostfound/internal/tokenstore"
	"github.com/pechorka/lostfound/pkg/encryptor"
	"github.com/pechorka/lostfound/pkg/fileloader"
)

const usage = `usage: lostfound <command> [flags]

auth:     login, logout, register, whoami, tokens, revoke <id>, revoke-all
items:    list, item <id>, my, recent, create, update <id>, delete <id>, resolve <id>
social:   comment <item-id> <text>, comments <item-id>, contact <item-id> <text>,
          inbox, sent, seen <contact-id>
public:   categories, blocks`

type config struct {
	APIURL        string `json:"api_url"`
	DbPath        string `json:"db_path"`
	StorageSecret string `json:"storage_secret"`
	Debug         bool   `json:"debug"`
}

func readCfg(path string) (*config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var c config
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, err
	}
	if c.APIURL == "" {
		return nil, errors.New("api_url is required")
	}
	if c.DbPath == "" {
		c.DbPath = "./lostfound.db"
	}
	if c.StorageSecret == "" {
		c.StorageSecret = "lostfound-dev-secret" // override in real installs
	}
	return &c, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("LOSTFOUND_CONFIG")
	if cfgPath == "" {
		cfgPath = "./cfg.json"
	}
	cfg, err := readCfg(cfgPath)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	if len(os.Args) < 2 {
		return errors.New(usage)
	}

	store, err := tokenstore.NewStore(cfg.DbPath, encryptor.New(cfg.StorageSecret))
	if err != nil {
		return err
	}
	defer store.Close()

	var logf func(format string, args ...any)
	if cfg.Debug {
		logf = log.Printf
	}
	manager := session.NewManager(session.Config{
		Store:   store,
		BaseURL: cfg.APIURL,
		Logf:    logf,
	})

	app := &app{manager: manager, api: manager.API()}
	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "login":
		return app.login(ctx, args)
	case "logout":
		return app.manager.Logout(ctx)
	case "register":
		return app.register(ctx, args)
	case "whoami":
		return app.whoami(ctx)
	case "tokens":
		return app.tokens(ctx)
	case "revoke":
		return app.revoke(ctx, args)
	case "revoke-all":
		return app.api.RevokeAllTokens(ctx)
	case "list":
		return app.list(ctx, args)
	case "item":
		return app.item(ctx, args)
	case "my":
		return app.myItems(ctx)
	case "recent":
		return app.recent(ctx, args)
	case "create":
		return app.create(ctx, args)
	case "update":
		return app.update(ctx, args)
	case "delete":
		return app.withItemID(args, func(id int64) error { return app.api.DeleteItem(ctx, id) })
	case "resolve":
		return app.withItemID(args, func(id int64) error {
			item, err := app.api.MarkResolved(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("item %d is now %s\n", item.ID, item.StatusDisplay)
			return nil
		})
	case "comment":
		return app.comment(ctx, args)
	case "comments":
		return app.comments(ctx, args)
	case "contact":
		return app.contact(ctx, args)
	case "inbox":
		return app.inbox(ctx)
	case "sent":
		return app.sent(ctx)
	case "seen":
		return app.seen(ctx, args)
	case "categories":
		return app.choices(ctx, app.api.Categories)
	case "blocks":
		return app.choices(ctx, app.api.Blocks)
	default:
		return errors.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

type app struct {
	manager *session.Manager
	api     *api.Client
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login requires -u and -p")
	}
	user, err := a.manager.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (#%d)\n", user.Username, user.ID)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	params := api.RegisterParams{}
	fs.StringVar(&params.Username, "u", "", "username")
	fs.StringVar(&params.Password, "p", "", "password")
	fs.StringVar(&params.Email, "email", "", "email")
	fs.StringVar(&params.FirstName, "first", "", "first name")
	fs.StringVar(&params.LastName, "last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.manager.Register(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("account %s created, now run: lostfound login -u %s -p <password>\n", user.Username, user.Username)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.manager.Bootstrap(ctx); err != nil {
		return err
	}
	current := a.manager.Current()
	if !current.Active() {
		fmt.Println("not logged in")
		return nil
	}
	u := current.User
	fmt.Printf("%s %s (@%s, #%d)\nitems posted: %d, contacts received: %d\n",
		u.FirstName, u.LastName, u.Username, u.ID, u.PostedItems, u.ReceivedContacts)
	return nil
}

func (a *app) tokens(ctx context.Context) error {
	page, err := a.api.UserTokens(ctx)
	if err != nil {
		return err
	}
	for _, t := range page.Tokens {
		state := "active"
		if t.Blacklisted {
			state = "blacklisted"
		}
		fmt.Printf("#%d\t%s\texpires %s\t%s\n", t.ID, state, t.ExpiresAt, t.Token)
	}
	return nil
}

func (a *app) revoke(ctx context.Context, args []string) error {
	return a.withItemID(args, func(id int64) error {
		return a.api.RevokeToken(ctx, id)
	})
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	filters := api.ItemFilters{}
	fs.StringVar(&filters.Type, "type", "", "perdido or encontrado")
	fs.StringVar(&filters.Category, "category", "", "category id")
	fs.StringVar(&filters.Block, "block", "", "campus block id")
	fs.StringVar(&filters.Query, "q", "", "free-text search")
	fs.StringVar(&filters.Status, "status", "", "item status (todos for all)")
	fs.StringVar(&filters.Ordering, "order", "", "e.g. -data_postagem, visualizacoes")
	fs.IntVar(&filters.Page, "page", 0, "page number")
	priority := fs.Bool("priority", false, "only priority items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *priority {
		filters.Priority = priority
	}
	page, err := a.api.Items(ctx, filters)
	if err != nil {
		return err
	}
	fmt.Printf("%d item(s)\n", page.Count)
	for _, item := range page.Results {
		printItem(item)
	}
	return nil
}

func (a *app) item(ctx context.Context, args []string) error {
	return a.withItemID(args, func(id int64) error {
		item, err := a.api.Item(ctx, id)
		if err != nil {
			return err
		}
		// Viewing counts as a view, same as opening the detail page.
		_, _ = a.api.AddView(ctx, id)
		printItem(item.Item)
		fmt.Printf("  %s\n  contacts: %d\n", item.Description, item.ContactCount)
		for _, c := range item.Comments {
			fmt.Printf("  > %s: %s\n", c.UserName, c.Text)
		}
		return nil
	})
}

func (a *app) myItems(ctx context.Context) error {
	page, err := a.api.MyItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range page.Results {
		printItem(item)
	}
	return nil
}

func (a *app) recent(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recent", flag.ContinueOnError)
	limit := fs.Int("n", 10, "how many items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	items, err := a.api.RecentItems(ctx, *limit)
	if err != nil {
		return err
	}
	for _, item := range items {
		printItem(item)
	}
	return nil
}

func itemFlags(fs *flag.FlagSet, params *api.ItemParams) *string {
	fs.StringVar(&params.Title, "title", "", "item title")
	fs.StringVar(&params.Description, "desc", "", "item description")
	fs.StringVar(&params.Category, "category", "", "category id")
	fs.StringVar(&params.Type, "type", "", "perdido or encontrado")
	fs.StringVar(&params.Block, "block", "", "campus block id")
	fs.StringVar(&params.Place, "place", "", "specific place")
	fs.StringVar(&params.ContactPhone, "phone", "", "contact phone")
	fs.StringVar(&params.ContactEmail, "email", "", "contact email")
	return fs.String("photo", "", "path to a photo")
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	params := api.ItemParams{}
	photoPath := itemFlags(fs, &params)
	when := fs.String("when", "", "when it was lost/found (RFC3339, default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if params.Title == "" || params.Type == "" || params.Block == "" {
		return errors.New("create requires at least -title, -type and -block")
	}
	params.OccurredAt = time.Now()
	if *when != "" {
		t, err := time.Parse(time.RFC3339, *when)
		if err != nil {
			return errors.Wrap(err, "parsing -when")
		}
		params.OccurredAt = t
	}
	if err := a.attachPhoto(&params, *photoPath); err != nil {
		return err
	}
	item, err := a.api.CreateItem(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("created item #%d\n", item.ID)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("update requires an item id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "parsing item id")
	}
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	params := api.ItemParams{}
	photoPath := itemFlags(fs, &params)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := a.attachPhoto(&params, *photoPath); err != nil {
		return err
	}
	item, err := a.api.UpdateItem(ctx, id, params)
	if err != nil {
		return err
	}
	fmt.Printf("updated item #%d\n", item.ID)
	return nil
}

func (a *app) attachPhoto(params *api.ItemParams, path string) error {
	if path == "" {
		return nil
	}
	file, err := fileloader.NewLoader(fileloader.Config{}).LoadImage(path)
	if err != nil {
		return err
	}
	params.Photo = &api.Photo{
		Name:        file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	}
	return nil
}

func (a *app) comment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("comment requires an item id and a text")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "parsing item id")
	}
	_, err = a.api.AddComment(ctx, id, args[1])
	return err
}

func (a *app) comments(ctx context.Context, args []string) error {
	return a.withItemID(args, func(id int64) error {
		comments, err := a.api.Comments(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range comments {
			fmt.Printf("%s (%s): %s\n", c.UserName, c.PostedAt.Format("02/01 15:04"), c.Text)
		}
		return nil
	})
}

func (a *app) contact(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("contact requires an item id and a message")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "parsing item id")
	}
	_, err = a.api.CreateContact(ctx, id, args[1])
	if err != nil {
		return err
	}
	fmt.Println("message sent to the item owner")
	return nil
}

func (a *app) inbox(ctx context.Context) error {
	page, err := a.api.ReceivedContacts(ctx)
	if err != nil {
		return err
	}
	for _, c := range page.Results {
		mark := " "
		if !c.Seen {
			mark = "*"
		}
		fmt.Printf("%s #%d item %d, %s: %s\n", mark, c.ID, c.ItemID, c.UserName, c.Message)
	}
	return nil
}

func (a *app) sent(ctx context.Context) error {
	page, err := a.api.SentContacts(ctx)
	if err != nil {
		return err
	}
	for _, c := range page.Results {
		fmt.Printf("#%d item %d: %s\n", c.ID, c.ItemID, c.Message)
	}
	return nil
}

func (a *app) seen(ctx context.Context, args []string) error {
	return a.withItemID(args, func(id int64) error {
		_, err := a.api.MarkContactSeen(ctx, id)
		return err
	})
}

func (a *app) choices(ctx context.Context, fetch func(context.Context) ([]api.Choice, error)) error {
	choices, err := fetch(ctx)
	if err != nil {
		return err
	}
	for _, c := range choices {
		fmt.Printf("%s\t%s\n", c.ID, c.Name)
	}
	return nil
}

func (a *app) withItemID(args []string, fn func(id int64) error) error {
	if len(args) < 1 {
		return errors.New("an id argument is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "parsing id")
	}
	return fn(id)
}

func printItem(item api.Item) {
	photo := ""
	if item.PhotoURL != "" {
		photo = " [photo]"
	}
	fmt.Printf("#%d [%s/%s] %s - %s (%s)%s\n",
		item.ID, item.TypeDisplay, item.StatusDisplay, item.Title,
		item.BlockDisplay, item.SincePosted, photo)
}
