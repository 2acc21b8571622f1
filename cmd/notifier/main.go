package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/pechorka/lostfound/cmd/notifier/internal/bot"
	"github.com/pechorka/lostfound/internal/session"
	"github.com/pechorka/lostfound/internal/tokenstore"
	"github.com/pechorka/lostfound/pkg/encryptor"
	"github.com/pechorka/lostfound/pkg/i18n"
	"github.com/pechorka/lostfound/pkg/queue"
	"github.com/pechorka/lostfound/pkg/watcher"
)

type config struct {
	TgToken       string  `json:"tg_token"`
	APIURL        string  `json:"api_url"`
	DbPath        string  `json:"db_path"`
	StorageSecret string  `json:"storage_secret"`
	Admins        []int64 `json:"admins"`
	Lang          string  `json:"lang"`
	PollSeconds   int     `json:"poll_seconds"`
	Debug         bool    `json:"debug"`
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
	if c.DbPath == "" {
		c.DbPath = "./lostfound.db"
	}
	if c.StorageSecret == "" {
		c.StorageSecret = "lostfound-dev-secret"
	}
	if c.Lang == "" {
		c.Lang = i18n.DefaultLang
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
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
	cfgPath := "./cfg.json"
	i18nPath := "./i18n.json"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		i18nPath = os.Args[2]
	}
	cfg, err := readCfg(cfgPath)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}

	store, err := tokenstore.NewStore(cfg.DbPath, encryptor.New(cfg.StorageSecret))
	if err != nil {
		return err
	}
	defer store.Close()

	manager := session.NewManager(session.Config{
		Store:   store,
		BaseURL: cfg.APIURL,
	})
	if err := manager.Bootstrap(context.Background()); err != nil {
		return errors.Wrap(err, "validating stored session")
	}
	if !manager.Current().Active() {
		return errors.New("no stored session; run `lostfound login` with the same db_path first")
	}

	i18nService := i18n.New()
	i18nWatcher, err := watcher.LoadAndWatch(i18nPath, i18nService)
	if err != nil {
		return errors.Wrap(err, "loading messages")
	}
	defer i18nWatcher.Close()

	notifyQueue := queue.NewNotifyQueue(queue.Config{})

	b, err := bot.NewBot(bot.Config{
		Token:     cfg.TgToken,
		Manager:   manager,
		I18n:      i18nService,
		Queue:     notifyQueue,
		Admins:    cfg.Admins,
		Lang:      cfg.Lang,
		PollEvery: time.Duration(cfg.PollSeconds) * time.Second,
		Debug:     cfg.Debug,
	})
	if err != nil {
		return err
	}
	go b.Run()

	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, syscall.SIGINT, syscall.SIGTERM)

	<-terminate
	b.Stop()
	notifyQueue.Stop()

	return nil
}
