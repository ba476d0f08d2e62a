package db

import "context"

const getDocument = `
SELECT value
FROM documents
WHERE namespace = $1
  AND key = $2`

func (q *Queries) GetDocument(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := q.db.QueryRow(ctx, getDocument, namespace, key).Scan(&value)
	return value, err
}

const upsertDocument = `
INSERT INTO documents (namespace, key, value, origin, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (namespace, key) DO UPDATE
    SET value      = EXCLUDED.value,
        origin     = EXCLUDED.origin,
        updated_at = EXCLUDED.updated_at`

type UpsertDocumentParams struct {
	Namespace string
	Key       string
	Value     string
	Origin    string
}

func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.db.Exec(ctx, upsertDocument, arg.Namespace, arg.Key, arg.Value, arg.Origin)
	return err
}

const deleteDocument = `
DELETE
FROM documents
WHERE namespace = $1
  AND key = $2`

func (q *Queries) DeleteDocument(ctx context.Context, namespace, key string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteDocument, namespace, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const notifyChange = `SELECT pg_notify($1, $2)`

func (q *Queries) NotifyChange(ctx context.Context, channel, payload string) error {
	_, err := q.db.Exec(ctx, notifyChange, channel, payload)
	return err
}
