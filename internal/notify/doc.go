// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package notify surfaces schema drift and newly discovered upstream datasets.

Each event is reduced to a stable key and recorded at most once through a
SeenStore. New events are appended to the drift log under the cache
directory and published as JSON on a watermill message.Publisher. In
production the publisher is NATS (see NewNATSPublisher); tests use the
watermill gochannel pub/sub.

	n := notify.New(pub, notify.NewBadgerSeenStore(db),
		notify.WithTopic("gamebot.schema"),
		notify.WithDriftLog(filepath.Join(cacheDir, notify.DriftLogFile)))
	for _, ev := range notify.DriftEvents(dataset, drift) {
		if _, err := n.SchemaEvent(ctx, ev); err != nil {
			logging.Warn().Err(err).Msg("schema event not published")
		}
	}

Publishing failures never fail a run; callers log and carry on.
*/
package notify
