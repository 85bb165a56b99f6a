package storage

const schema = `
-- Decks are created once per import; re-importing the same archive creates a
-- new deck. Counters are recomputed after review-state seeding.
CREATE TABLE IF NOT EXISTS decks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uid TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source_deck_id INTEGER NOT NULL DEFAULT 0,
    fingerprint TEXT NOT NULL DEFAULT '',
    total_cards INTEGER NOT NULL DEFAULT 0,
    new_cards INTEGER NOT NULL DEFAULT 0,
    learning_cards INTEGER NOT NULL DEFAULT 0,
    review_cards INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decks_user ON decks(user_id);
CREATE INDEX IF NOT EXISTS idx_decks_fingerprint ON decks(user_id, fingerprint);

-- Field values are stored joined with the original unit separator so the
-- blob round-trips losslessly. Tags are space-joined tokens.
CREATE TABLE IF NOT EXISTS notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    deck_id INTEGER NOT NULL,
    fields TEXT NOT NULL,
    sort_field TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    fingerprint TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);
CREATE INDEX IF NOT EXISTS idx_notes_deck ON notes(deck_id);

CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id INTEGER NOT NULL,
    deck_id INTEGER NOT NULL,
    ord INTEGER NOT NULL DEFAULT 0,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    front_audio TEXT NOT NULL DEFAULT '[]', -- JSON array of filenames
    back_audio TEXT NOT NULL DEFAULT '[]',
    card_type TEXT NOT NULL DEFAULT 'standard',

    FOREIGN KEY(note_id) REFERENCES notes(id),
    FOREIGN KEY(deck_id) REFERENCES decks(id)
);
CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
CREATE INDEX IF NOT EXISTS idx_cards_note ON cards(note_id);

CREATE TABLE IF NOT EXISTS media (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    deck_id INTEGER NOT NULL,
    uid TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    category TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    data BLOB NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);
CREATE INDEX IF NOT EXISTS idx_media_deck ON media(deck_id);

-- One scheduling state per (user, card). Seeded at import, rewritten by the
-- engine on every review.
CREATE TABLE IF NOT EXISTS card_review_states (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    card_id INTEGER NOT NULL,
    ease REAL NOT NULL DEFAULT 2.5,
    interval_days REAL NOT NULL DEFAULT 0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    learning_step INTEGER NOT NULL DEFAULT 0, -- -1 once graduated
    due DATETIME,
    last_reviewed DATETIME,
    lapses INTEGER NOT NULL DEFAULT 0,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    phase TEXT NOT NULL DEFAULT 'new',

    UNIQUE(user_id, card_id),
    FOREIGN KEY(card_id) REFERENCES cards(id)
);
CREATE INDEX IF NOT EXISTS idx_card_states_due ON card_review_states(user_id, due);

-- Same state shape keyed by grammar concept; created lazily on first review.
CREATE TABLE IF NOT EXISTS concept_review_states (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    concept_id TEXT NOT NULL,
    ease REAL NOT NULL DEFAULT 2.5,
    interval_days REAL NOT NULL DEFAULT 0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    learning_step INTEGER NOT NULL DEFAULT 0,
    due DATETIME,
    last_reviewed DATETIME,
    lapses INTEGER NOT NULL DEFAULT 0,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    phase TEXT NOT NULL DEFAULT 'new',

    UNIQUE(user_id, concept_id)
);
CREATE INDEX IF NOT EXISTS idx_concept_states_due ON concept_review_states(user_id, due);

-- Append-only review history. Exactly one of card_id and concept_id is set.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    card_id INTEGER,
    concept_id TEXT,
    quality TEXT NOT NULL,
    reviewed_at DATETIME NOT NULL,
    interval_days REAL NOT NULL,
    ease REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id);

-- Registered .apkg origins: local directories or git repository URLs.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local',
    last_synced DATETIME,

    UNIQUE(user_id, path)
);
`
