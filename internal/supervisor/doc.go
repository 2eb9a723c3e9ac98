// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package supervisor runs the long-lived gamebot services under suture v4.

The tree has three layers so a failing service restarts without taking its
neighbours down:

	gamebot
	├── data-layer       EmbeddedNATSService (nats.embedded_server)
	├── pipeline-layer   FreshnessWatcher (watcher.enabled)
	└── api-layer        HTTPServerService

Supervisor events are logged through sutureslog using the zerolog-backed
slog adapter from the logging package.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
