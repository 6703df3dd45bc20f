package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	events "ms-events/internal/events/service"
	"ms-events/internal/models"
)

const dateLayout = "Mon 02 Jan 2006 15:04"

var statusColors = map[models.EventStatus]*color.Color{
	models.StatusUpcoming:  color.New(color.FgGreen),
	models.StatusCompleted: color.New(color.FgHiBlack),
	models.StatusCancelled: color.New(color.FgRed),
}

func renderTable(w io.Writer, list []models.Event, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No events found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tWHERE\tPRICE\tSTATUS")
	for _, ev := range list {
		status := events.DeriveStatus(ev, now)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.Name, ev.Date.Local().Format(dateLayout), where(ev), priceLabel(ev),
			statusColors[status].Sprint(status))
	}
	tw.Flush()
}

func renderDetail(w io.Writer, ev models.Event, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "%s\t%s\n", k, v) }

	status := events.DeriveStatus(ev, now)
	row("ID", ev.ID)
	row("Name", ev.Name)
	row("Status", statusColors[status].Sprint(status))
	row("Date", ev.Date.Local().Format(dateLayout))
	row("Mode", string(ev.Mode()))
	row("Where", where(ev))
	if ev.Venue != nil {
		row("Venue", *ev.Venue)
	}
	if ev.Capacity != nil {
		row("Capacity", fmt.Sprint(*ev.Capacity))
	}
	row("Price", priceLabel(ev))
	if ev.BannerImage != nil {
		row("Banner", *ev.BannerImage)
	}
	row("Created", ev.CreatedAt.Local().Format(time.RFC3339))
	row("Updated", ev.UpdatedAt.Local().Format(time.RFC3339))
	tw.Flush()

	fmt.Fprintf(w, "\n%s\n", ev.Description)
}

func where(ev models.Event) string {
	if ev.Mode() == models.ModeOnline {
		if ev.MeetingURL != nil {
			return *ev.MeetingURL
		}
		return "Online"
	}
	return ev.Location
}

func priceLabel(ev models.Event) string {
	if !ev.IsPaid || ev.Price == nil {
		return "Free"
	}
	return "$" + ev.Price.StringFixed(2)
}
