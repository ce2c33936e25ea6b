package main

import (
	"fmt"

	"github.com/danmuck/indidrv/internal/catalog"
	"github.com/danmuck/indidrv/internal/plugins"
	"github.com/danmuck/indidrv/internal/snoop"
)

// catalogPlugin exposes the loaded device catalog to the admin
// surface's /plugins route, so an operator can see what devices a
// running driver process actually loaded without reading its config.
type catalogPlugin struct {
	cat *catalog.Catalog
}

func (p catalogPlugin) Name() string { return "catalog" }

func (p catalogPlugin) Status() (any, error) {
	return map[string]any{"devices": p.cat.Devices()}, nil
}

func (p catalogPlugin) Actions() map[string]plugins.Action {
	return map[string]plugins.Action{
		"reload": func() (string, error) {
			return "", fmt.Errorf("catalog reload requires a process restart")
		},
	}
}

// snoopPlugin exposes this driver's snoop relay subscriber counts to
// the admin surface.
type snoopPlugin struct {
	relay  *snoop.Relay
	device string
}

func (p snoopPlugin) Name() string { return "snoop" }

func (p snoopPlugin) Status() (any, error) {
	return map[string]any{"subscribers_for_self": p.relay.Subscribers(p.device)}, nil
}

func (p snoopPlugin) Actions() map[string]plugins.Action {
	return map[string]plugins.Action{}
}
