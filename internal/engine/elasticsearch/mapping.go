package elasticsearch

// DefaultIndexName is the default index for content documents.
const DefaultIndexName = "content_documents"

// buildIndexMapping returns the index mapping. Search vectors are stored
// as keyword arrays so analyzed terms can be matched by prefix exactly as
// they were produced at index time.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "dynamic": false,
    "properties": {
      "doc_key":        { "type": "keyword" },
      "document_id":    { "type": "keyword" },
      "document_type":  { "type": "keyword" },
      "title":          { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 512 } } },
      "content":        { "type": "text" },
      "language":       { "type": "keyword" },
      "author_id":      { "type": "keyword" },
      "author_name":    { "type": "keyword" },
      "status":         { "type": "keyword" },
      "metadata":       { "type": "object", "enabled": false },
      "metadata_pairs": { "type": "keyword" },
      "search_vector": {
        "properties": {
          "title":   { "type": "keyword" },
          "content": { "type": "keyword" },
          "author":  { "type": "keyword" }
        }
      },
      "published_at":   { "type": "date" },
      "indexed_at":     { "type": "date" },
      "updated_at":     { "type": "date" }
    }
  }
}`
}
