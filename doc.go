/*
Package hashcol lets a record with a fixed set of columns carry an open-ended
set of extra attributes, physically stored inside a single structured column
(the “hash column”).

Callers read and write virtual attributes exactly like declared columns. The
package routes each access, converts values to and from their storable form,
and keeps change tracking informed at the granularity of the physical column.

# Moving Parts

**Values.** Everything is a Value: null, bool, number, text, list, ordered map,
or time. Map keys are canonical strings; keys arriving from Go maps with other
key types are normalized on the way in.

**Codecs.** A Registry holds an ordered list of codecs. Dump and Load walk
maps and lists recursively; the first codec that claims a value converts it and
the walk stops there. The built-in DateTimeCodec stores times as
2024-01-31T23:59:59.123Z.

**Names.** Classify splits a token like “name_changed?” into a base name and an
access mode. The longest matching suffix wins.

**Records.** A Record routes each name either to a declared column or to its
OverlayStore. The overlay is kept in stored form and decoded on read; any
effective change marks the whole hash column dirty.

**Engines.** Persistence is delegated to an Engine (see the boltstore and
sqlstore packages). Engines only ever see column-keyed rows whose hash column
is fully encoded.

## Stored Format

The hash column holds a map whose leaves are text, numbers, bools and nulls,
nested in maps and lists. Bolt rows are msgpack, SQLite rows keep the hash
column as JSON text.
*/
package hashcol
