package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...any) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow(headers...)
	return table
}

func printMissions(out io.Writer, duties []*model.MissionDuty) error {
	table := newTable("CODE", "VIN", "TASK", "STATUS", "DISPATCHED", "CREATED")
	for _, d := range duties {
		dispatched := "-"
		if d.DispatchedAt != nil {
			dispatched = d.DispatchedAt.Format(time.RFC3339)
		}
		table.AddRow(d.MissionCode, d.VIN, d.TaskCode, d.Status, dispatched, d.CreatedAt.Format(time.RFC3339))
	}
	_, err := fmt.Fprintln(out, table)
	return err
}

func printMission(out io.Writer, d *model.MissionDuty) error {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("Code:", d.MissionCode)
	table.AddRow("ID:", d.ID)
	table.AddRow("VIN:", d.VIN)
	table.AddRow("Task:", d.TaskCode)
	table.AddRow("Date:", d.Date)
	table.AddRow("Status:", d.Status)
	table.AddRow("Dispatched:", d.Dispatched)
	if d.DispatchedAt != nil {
		table.AddRow("Dispatched at:", d.DispatchedAt.Format(time.RFC3339))
	}
	if d.Task.Route != nil {
		table.AddRow("Waypoints:", len(d.Task.Route.Coordinates))
	}
	table.AddRow("Created:", d.CreatedAt.Format(time.RFC3339))
	_, err := fmt.Fprintln(out, table)
	return err
}

func printEvents(out io.Writer, events []*model.MissionEvent) error {
	table := newTable("TIME", "EVENT", "TYPE", "VIN", "DATA")
	for _, e := range events {
		data := ""
		if len(e.Data) > 0 {
			raw, _ := json.Marshal(e.Data)
			data = string(raw)
		}
		table.AddRow(e.CreatedAt.Format(time.RFC3339), e.Event, e.Type, e.VIN, data)
	}
	_, err := fmt.Fprintln(out, table)
	return err
}

func printStats(out io.Writer, s *model.MissionStats) error {
	table := uitable.New()
	table.AddRow("Total:", s.Total)
	table.AddRow("Dispatched:", s.Dispatched)

	statuses := make([]string, 0, len(s.ByStatus))
	for status, n := range s.ByStatus {
		statuses = append(statuses, fmt.Sprintf("%s=%d", status, n))
	}
	sort.Strings(statuses)
	table.AddRow("By status:", strings.Join(statuses, " "))

	vins := make([]string, 0, len(s.ByVIN))
	for vin := range s.ByVIN {
		vins = append(vins, vin)
	}
	sort.Strings(vins)
	if _, err := fmt.Fprintln(out, table); err != nil {
		return err
	}

	perVIN := newTable("VIN", "MISSIONS")
	for _, vin := range vins {
		perVIN.AddRow(vin, s.ByVIN[vin])
	}
	_, err := fmt.Fprintln(out, perVIN)
	return err
}
