package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/store"
	"github.com/cesargomez89/mediacache/internal/transform"
)

// CountKey is the column every count query returns
const CountKey = "total"

func SelectTracks(tx *store.Tx, outKey string, uris []string) {
	if len(uris) == 0 {
		return
	}
	tx.AddMappedQuery(outKey, fmt.Sprintf("SELECT %s FROM Track WHERE uri IN (%s)",
		plainColumns(constants.TableTrack, trackColumns), placeholders(len(uris))), stringArgs(uris), rowMapper(transform.Track))
}

func CountTracks(tx *store.Tx, outKey string) {
	tx.AddQuery(outKey, "SELECT count(*) AS total FROM Track", nil)
}

func SelectArtists(tx *store.Tx, outKey string, uris []string) {
	if len(uris) == 0 {
		return
	}
	tx.AddMappedQuery(outKey, fmt.Sprintf("SELECT %s FROM Artist WHERE uri IN (%s)",
		plainColumns(constants.TableArtist, artistColumns), placeholders(len(uris))), stringArgs(uris), rowMapper(transform.Artist))
}

func SelectUserAccounts(tx *store.Tx, outKey string, uris []string) {
	if len(uris) == 0 {
		return
	}
	tx.AddMappedQuery(outKey, fmt.Sprintf("SELECT %s FROM UserAccount WHERE uri IN (%s)",
		plainColumns(constants.TableUserAccount, artistColumns), placeholders(len(uris))), stringArgs(uris), rowMapper(transform.UserAccount))
}

var collectionTables = []transform.JoinTable{
	{Name: constants.TableTrackCollection, Prefix: "r1_", Columns: collectionColumns},
	{Name: constants.TableUserAccount, Prefix: "r2_", Columns: artistColumns},
}

// SelectTrackCollections selects collections with their owner joined
func SelectTrackCollections(tx *store.Tx, outKey string, uris []string) {
	if len(uris) == 0 {
		return
	}
	sql := fmt.Sprintf("SELECT %s FROM TrackCollection LEFT JOIN UserAccount ON TrackCollection.ownerURI = UserAccount.uri WHERE TrackCollection.uri IN (%s)",
		selectColumns(collectionTables), placeholders(len(uris)))
	tx.AddMappedQuery(outKey, sql, stringArgs(uris), joinedMapper(collectionTables, func(p []transform.Object) (transform.Object, error) {
		return transform.TrackCollection(p[0], p[1])
	}))
}

var itemTables = []transform.JoinTable{
	{Name: constants.TableTrackCollectionItem, Prefix: "r1_", Columns: itemColumns},
	{Name: constants.TableTrack, Prefix: "r2_", Columns: trackColumns},
}

// SelectTrackCollectionItems selects the items of uri in index order,
// restricted to r when given
func SelectTrackCollectionItems(tx *store.Tx, outKey, uri string, r *IndexRange) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM TrackCollectionItem, Track WHERE TrackCollectionItem.collectionURI = ? AND TrackCollectionItem.trackURI = Track.uri",
		selectColumns(itemTables))
	args := []any{uri}
	if r != nil {
		sb.WriteString(" AND TrackCollectionItem.indexNum >= ?")
		args = append(args, max(r.Start, 0))
		if r.End >= 0 {
			sb.WriteString(" AND TrackCollectionItem.indexNum < ?")
			args = append(args, r.End)
		}
	}
	sb.WriteString(" ORDER BY TrackCollectionItem.indexNum ASC")
	tx.AddMappedQuery(outKey, sb.String(), args, joinedMapper(itemTables, func(p []transform.Object) (transform.Object, error) {
		return transform.TrackCollectionItem(p[0], p[1])
	}))
}

func (k libraryKind) tables() []transform.JoinTable {
	tables := []transform.JoinTable{
		{Name: k.table, Prefix: "r1_", Columns: libraryColumns(k.column)},
		{Name: k.media, Prefix: "r2_", Columns: k.mediaColumns},
	}
	if k.owner {
		tables = append(tables, transform.JoinTable{Name: constants.TableUserAccount, Prefix: "r3_", Columns: artistColumns})
	}
	return tables
}

type libraryFilter struct {
	uris     []string
	provider string
}

func (k libraryKind) where(f libraryFilter) (string, []any) {
	var conds []string
	var args []any
	if len(f.uris) > 0 {
		conds = append(conds, fmt.Sprintf("%s.%s IN (%s)", k.table, k.column, placeholders(len(f.uris))))
		args = append(args, stringArgs(f.uris)...)
	}
	if f.provider != "" {
		conds = append(conds, fmt.Sprintf("%s.libraryProvider = ?", k.table))
		args = append(args, f.provider)
	}
	return strings.Join(conds, " AND "), args
}

func (k libraryKind) selectSQL(f libraryFilter, order Order, orderBy OrderBy, r *IndexRange) (string, []any) {
	tables := k.tables()
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s, %s", selectColumns(tables), k.table, k.media)
	if k.owner {
		fmt.Fprintf(&sb, " LEFT JOIN UserAccount ON %s.ownerURI = UserAccount.uri", k.media)
	}
	fmt.Fprintf(&sb, " WHERE %s.%s = %s.uri", k.table, k.column, k.media)
	cond, args := k.where(f)
	if cond != "" {
		sb.WriteString(" AND " + cond)
	}
	// the uri tiebreak keeps LIMIT/OFFSET pages stable
	dir := order.sql()
	if dir == "" {
		dir = "ASC"
	}
	field := fmt.Sprintf("%s.addedAt", k.table)
	if orderBy == OrderByName {
		field = fmt.Sprintf("%s.name", k.media)
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, %s.%s ASC", field, dir, k.table, k.column)
	limit, limitArgs := limitClause(r)
	sb.WriteString(limit)
	return sb.String(), append(args, limitArgs...)
}

// SelectLibraryItems selects a page of saved or followed entries with
// their entities nested under mediaItem
func SelectLibraryItems(tx *store.Tx, outKey string, kind LibraryKind, opts LibraryItemSelectOptions) error {
	k, err := lookupKind(kind)
	if err != nil {
		return err
	}
	sql, args := k.selectSQL(libraryFilter{provider: opts.LibraryProvider}, opts.Order, opts.OrderBy, opts.Range)
	tx.AddMappedQuery(outKey, sql, args, joinedMapper(k.tables(), k.transform))
	return nil
}

// SelectLibraryItem selects the entries for one URI, one per library
// provider unless provider is set
func SelectLibraryItem(tx *store.Tx, outKey string, kind LibraryKind, uri, provider string) error {
	k, err := lookupKind(kind)
	if err != nil {
		return err
	}
	sql, args := k.selectSQL(libraryFilter{uris: []string{uri}, provider: provider}, OrderNone, OrderByAddedAt, nil)
	tx.AddMappedQuery(outKey, sql, args, joinedMapper(k.tables(), k.transform))
	return nil
}

// CountLibraryItems counts entries, optionally for one library provider
func CountLibraryItems(tx *store.Tx, outKey string, kind LibraryKind, provider string) error {
	k, err := lookupKind(kind)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("SELECT count(*) AS total FROM %s", k.table)
	cond, args := k.where(libraryFilter{provider: provider})
	if cond != "" {
		sql += " WHERE " + cond
	}
	tx.AddQuery(outKey, sql, args)
	return nil
}

// SelectSavedURIs returns the subset of uris present in the library as
// rows with a single uri column
func SelectSavedURIs(tx *store.Tx, outKey string, kind LibraryKind, uris []string, provider string) error {
	k, err := lookupKind(kind)
	if err != nil {
		return err
	}
	if len(uris) == 0 {
		return nil
	}
	cond, args := k.where(libraryFilter{uris: uris, provider: provider})
	tx.AddQuery(outKey, fmt.Sprintf("SELECT DISTINCT %s.%s AS uri FROM %s WHERE %s", k.table, k.column, k.table, cond), args)
	return nil
}

const libraryArtistsFrom = " FROM Artist, TrackArtist, SavedTrack WHERE SavedTrack.trackURI = TrackArtist.trackURI AND TrackArtist.artistURI = Artist.uri"

// SelectLibraryArtists selects the artists of saved tracks by name
func SelectLibraryArtists(tx *store.Tx, outKey string, opts LibraryItemSelectOptions) {
	var sb strings.Builder
	sb.WriteString("SELECT " + plainColumns(constants.TableArtist, artistColumns))
	sb.WriteString(libraryArtistsFrom)
	var args []any
	if opts.LibraryProvider != "" {
		sb.WriteString(" AND SavedTrack.libraryProvider = ?")
		args = append(args, opts.LibraryProvider)
	}
	dir := opts.Order.sql()
	if dir == "" {
		dir = "ASC"
	}
	sb.WriteString(" GROUP BY Artist.uri ORDER BY Artist.name " + dir + ", Artist.uri ASC")
	limit, limitArgs := limitClause(opts.Range)
	sb.WriteString(limit)
	tx.AddMappedQuery(outKey, sb.String(), append(args, limitArgs...), rowMapper(transform.Artist))
}

func CountLibraryArtists(tx *store.Tx, outKey, provider string) {
	sql := "SELECT count(DISTINCT Artist.uri) AS total" + libraryArtistsFrom
	var args []any
	if provider != "" {
		sql += " AND SavedTrack.libraryProvider = ?"
		args = append(args, provider)
	}
	tx.AddQuery(outKey, sql, args)
}

var historyTables = []transform.JoinTable{
	{Name: constants.TablePlaybackHistoryItem, Prefix: "r1_", Columns: historyColumns},
	{Name: constants.TableTrack, Prefix: "r2_", Columns: trackColumns},
}

func SelectPlaybackHistoryItems(tx *store.Tx, outKey string, opts HistorySelectOptions) {
	dir := opts.Order.sql()
	if dir == "" {
		dir = "DESC"
	}
	sql := fmt.Sprintf("SELECT %s FROM PlaybackHistoryItem, Track WHERE PlaybackHistoryItem.trackURI = Track.uri ORDER BY PlaybackHistoryItem.startTime %s",
		selectColumns(historyTables), dir)
	limit, args := limitClause(opts.Range)
	tx.AddMappedQuery(outKey, sql+limit, args, joinedMapper(historyTables, func(p []transform.Object) (transform.Object, error) {
		return transform.PlaybackHistoryItem(p[0], p[1])
	}))
}

func CountPlaybackHistoryItems(tx *store.Tx, outKey string) {
	tx.AddQuery(outKey, "SELECT count(*) AS total FROM PlaybackHistoryItem", nil)
}

func SelectState(tx *store.Tx, outKey string, keys []string) {
	if len(keys) == 0 {
		return
	}
	tx.AddQuery(outKey, fmt.Sprintf("SELECT stateKey, stateValue FROM DBState WHERE stateKey IN (%s)", placeholders(len(keys))), stringArgs(keys))
}
