package docstore

import "errors"

var errEmptyKey = errors.New("key is empty")

// changesChannel is the pub/sub channel name shared by the Redis and
// PostgreSQL stores.
const changesChannel = "pm_documents"
