package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"ms-events/internal/client"
	"ms-events/internal/events/calendar"
	"ms-events/internal/events/schema"
	events "ms-events/internal/events/service"
	"ms-events/internal/kafka"
	"ms-events/internal/models"
)

func main() {
	app := &cli.App{
		Name:  "eventctl",
		Usage: "manage events from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to eventctl.yaml"},
			&cli.StringFlag{Name: "api", Usage: "API base URL (overrides config)", EnvVars: []string{"EVENTCTL_API"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list events with their status",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "filter by name, location or venue"},
				},
				Action: listAction,
			},
			{
				Name:      "show",
				Usage:     "show one event",
				ArgsUsage: "<id>",
				Action:    showAction,
			},
			{
				Name:   "create",
				Usage:  "create an event",
				Flags:  eventFlags(),
				Action: createAction,
			},
			{
				Name:      "update",
				Usage:     "change the given fields of an event",
				ArgsUsage: "<id>",
				Flags:     eventFlags(),
				Action:    updateAction,
			},
			{
				Name:      "delete",
				Usage:     "delete an event",
				ArgsUsage: "<id>",
				Action:    deleteAction,
			},
			{
				Name:   "stats",
				Usage:  "count events by status",
				Action: statsAction,
			},
			{
				Name:      "export",
				Usage:     "save an event as .ics or its share QR code as .png",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "ics", Usage: "ics or qr"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default: derived from the event name)"},
				},
				Action: exportAction,
			},
			{
				Name:   "watch",
				Usage:  "stream event lifecycle messages from Kafka",
				Action: watchAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		var fe schema.FieldErrors
		if errors.As(err, &fe) {
			for field, msg := range fe {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		}
		os.Exit(1)
	}
}

func eventFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "banner", Usage: "banner image URL"},
		&cli.StringFlag{Name: "location"},
		&cli.BoolFlag{Name: "online"},
		&cli.StringFlag{Name: "meeting-url"},
		&cli.StringFlag{Name: "venue"},
		&cli.Float64Flag{Name: "capacity"},
		&cli.BoolFlag{Name: "paid"},
		&cli.Float64Flag{Name: "price"},
		&cli.StringFlag{Name: "date", Usage: "e.g. 2026-11-05T18:30 or RFC3339"},
		&cli.BoolFlag{Name: "cancelled"},
	}
}

// inputFromFlags only sets fields whose flag was given, so update stays partial.
func inputFromFlags(c *cli.Context) models.EventInput {
	var in models.EventInput
	str := func(flag string, dst *models.Optional[string]) {
		if c.IsSet(flag) {
			*dst = models.Some(c.String(flag))
		}
	}
	boolean := func(flag string, dst *models.Optional[bool]) {
		if c.IsSet(flag) {
			*dst = models.Some(c.Bool(flag))
		}
	}
	number := func(flag string, dst *models.Optional[float64]) {
		if c.IsSet(flag) {
			*dst = models.Some(c.Float64(flag))
		}
	}

	str("name", &in.Name)
	str("description", &in.Description)
	str("banner", &in.BannerImage)
	str("location", &in.Location)
	boolean("online", &in.IsOnline)
	str("meeting-url", &in.MeetingURL)
	str("venue", &in.Venue)
	number("capacity", &in.Capacity)
	boolean("paid", &in.IsPaid)
	number("price", &in.Price)
	str("date", &in.Date)
	boolean("cancelled", &in.IsCancelled)
	return in
}

func newClient(c *cli.Context) (*client.Client, *ctlConfig, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if api := c.String("api"); api != "" {
		cfg.APIURL = api
	}
	return client.New(cfg.APIURL), cfg, nil
}

func requireID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("expected exactly one event id", 2)
	}
	return c.Args().First(), nil
}

func listAction(c *cli.Context) error {
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	list, err := api.ListEvents(c.Context)
	if err != nil {
		return err
	}
	renderTable(c.App.Writer, events.FilterEvents(list, c.String("search")), time.Now())
	return nil
}

func showAction(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	ev, err := api.GetEvent(c.Context, id)
	if err != nil {
		return err
	}
	renderDetail(c.App.Writer, *ev, time.Now())
	return nil
}

func createAction(c *cli.Context) error {
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	ev, err := api.CreateEvent(c.Context, inputFromFlags(c))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Created %s (%s)\n", ev.Name, ev.ID)
	return nil
}

func updateAction(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	ev, err := api.UpdateEvent(c.Context, id, inputFromFlags(c))
	if err != nil {
		return err
	}
	renderDetail(c.App.Writer, *ev, time.Now())
	return nil
}

func deleteAction(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	if err := api.DeleteEvent(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Event deleted successfully")
	return nil
}

func statsAction(c *cli.Context) error {
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	stats, err := api.Stats(c.Context)
	if err != nil {
		return err
	}
	for _, key := range []string{"total", "upcoming", "completed", "cancelled"} {
		fmt.Fprintf(c.App.Writer, "%-10s %d\n", key, stats[key])
	}
	return nil
}

func exportAction(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	api, _, err := newClient(c)
	if err != nil {
		return err
	}
	ev, err := api.GetEvent(c.Context, id)
	if err != nil {
		return err
	}

	var data []byte
	var ext string
	switch c.String("format") {
	case "ics":
		data, err = api.EventICS(c.Context, id)
		ext = ".ics"
	case "qr":
		data, err = api.EventQR(c.Context, id)
		ext = ".png"
	default:
		return cli.Exit("format must be ics or qr", 2)
	}
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = calendar.Filename(*ev, ext)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(c.App.Writer, "Saved %s\n", out)
	return nil
}

func watchAction(c *cli.Context) error {
	_, cfg, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.Topics, cfg.KafkaGroupID)
	defer consumer.Close()

	fmt.Fprintf(c.App.Writer, "Watching %v on %v\n", cfg.Topics, cfg.KafkaBrokers)
	return consumer.Start(ctx, func(msg kafka.EventMessage) {
		name := ""
		if msg.Event != nil {
			name = msg.Event.Name
		}
		fmt.Fprintf(c.App.Writer, "%s  %-14s %s %s\n",
			msg.OccurredAt.Local().Format(time.TimeOnly), msg.Type, msg.EventID, name)
	}, func(err error) {
		fmt.Fprintln(c.App.ErrWriter, "skipping message:", err)
	})
}
