package store

// CreateDBSQL creates every table used by the media cache and the sync
// job queue.
const CreateDBSQL = `
CREATE TABLE IF NOT EXISTS Artist (
	uri TEXT NOT NULL,
	provider TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	images TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(uri)
);
CREATE TABLE IF NOT EXISTS UserAccount (
	uri TEXT NOT NULL,
	provider TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	images TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(uri)
);
CREATE TABLE IF NOT EXISTS FollowedArtist (
	artistURI TEXT NOT NULL,
	libraryProvider TEXT NOT NULL,
	addedAt TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(artistURI, libraryProvider),
	FOREIGN KEY(artistURI) REFERENCES Artist(uri)
);
CREATE TABLE IF NOT EXISTS FollowedUserAccount (
	userURI TEXT NOT NULL,
	libraryProvider TEXT NOT NULL,
	addedAt TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(userURI, libraryProvider),
	FOREIGN KEY(userURI) REFERENCES UserAccount(uri)
);
CREATE TABLE IF NOT EXISTS TrackCollection (
	uri TEXT NOT NULL,
	provider TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	versionId TEXT,
	itemCount INT,
	ownerURI TEXT,
	artists TEXT,
	images TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(uri),
	FOREIGN KEY(ownerURI) REFERENCES UserAccount(uri)
);
CREATE TABLE IF NOT EXISTS TrackCollectionArtist (
	collectionURI TEXT NOT NULL,
	artistURI TEXT NOT NULL,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(collectionURI, artistURI),
	FOREIGN KEY(collectionURI) REFERENCES TrackCollection(uri),
	FOREIGN KEY(artistURI) REFERENCES Artist(uri)
);
CREATE TABLE IF NOT EXISTS Track (
	uri TEXT NOT NULL,
	provider TEXT NOT NULL,
	name TEXT NOT NULL,
	albumName TEXT,
	albumURI TEXT,
	artists TEXT,
	images TEXT,
	duration REAL,
	playable INT(1),
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(uri),
	FOREIGN KEY(albumURI) REFERENCES TrackCollection(uri)
);
CREATE TABLE IF NOT EXISTS TrackArtist (
	trackURI TEXT NOT NULL,
	artistURI TEXT NOT NULL,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(trackURI, artistURI),
	FOREIGN KEY(trackURI) REFERENCES Track(uri),
	FOREIGN KEY(artistURI) REFERENCES Artist(uri)
);
CREATE TABLE IF NOT EXISTS TrackCollectionItem (
	collectionURI TEXT NOT NULL,
	indexNum INT NOT NULL,
	trackURI TEXT NOT NULL,
	uniqueId TEXT,
	addedAt TEXT,
	addedBy TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(collectionURI, indexNum),
	FOREIGN KEY(collectionURI) REFERENCES TrackCollection(uri),
	FOREIGN KEY(trackURI) REFERENCES Track(uri)
);
CREATE TABLE IF NOT EXISTS SavedTrack (
	trackURI TEXT NOT NULL,
	libraryProvider TEXT NOT NULL,
	addedAt TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(trackURI, libraryProvider),
	FOREIGN KEY(trackURI) REFERENCES Track(uri)
);
CREATE TABLE IF NOT EXISTS SavedAlbum (
	albumURI TEXT NOT NULL,
	libraryProvider TEXT NOT NULL,
	addedAt TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(albumURI, libraryProvider),
	FOREIGN KEY(albumURI) REFERENCES TrackCollection(uri)
);
CREATE TABLE IF NOT EXISTS SavedPlaylist (
	playlistURI TEXT NOT NULL,
	libraryProvider TEXT NOT NULL,
	addedAt TEXT,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(playlistURI, libraryProvider),
	FOREIGN KEY(playlistURI) REFERENCES TrackCollection(uri)
);
CREATE TABLE IF NOT EXISTS PlaybackHistoryItem (
	startTime TEXT NOT NULL,
	trackURI TEXT NOT NULL,
	contextURI TEXT,
	duration REAL,
	chosenByUser INT(1) NOT NULL DEFAULT 0,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(startTime, trackURI),
	FOREIGN KEY(trackURI) REFERENCES Track(uri)
);
CREATE TABLE IF NOT EXISTS DBState (
	stateKey TEXT NOT NULL,
	stateValue TEXT NOT NULL,
	updateTime TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(stateKey)
);
CREATE INDEX IF NOT EXISTS idx_track_album ON Track(albumURI);
CREATE INDEX IF NOT EXISTS idx_trackartist_artist ON TrackArtist(artistURI);
CREATE INDEX IF NOT EXISTS idx_item_track ON TrackCollectionItem(trackURI);
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	progress REAL DEFAULT 0,
	source_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	error TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_source ON jobs(source_id, type)
WHERE status IN ('queued', 'running');
`

// PurgeDBSQL drops every table, dependents first.
const PurgeDBSQL = `
DROP TABLE IF EXISTS PlaybackHistoryItem;
DROP TABLE IF EXISTS SavedPlaylist;
DROP TABLE IF EXISTS SavedAlbum;
DROP TABLE IF EXISTS SavedTrack;
DROP TABLE IF EXISTS TrackArtist;
DROP TABLE IF EXISTS TrackCollectionArtist;
DROP TABLE IF EXISTS TrackCollectionItem;
DROP TABLE IF EXISTS Track;
DROP TABLE IF EXISTS TrackCollection;
DROP TABLE IF EXISTS FollowedArtist;
DROP TABLE IF EXISTS FollowedUserAccount;
DROP TABLE IF EXISTS Artist;
DROP TABLE IF EXISTS UserAccount;
DROP TABLE IF EXISTS DBState;
DROP TABLE IF EXISTS jobs;
`
