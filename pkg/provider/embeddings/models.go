package embeddings

import "fmt"

// ModelSpec describes one supported embedding model.
type ModelSpec struct {
	// Alias is the short name used in configuration, e.g. "multilingual-e5-base".
	Alias string

	// ID is the provider-specific model identifier sent on the wire.
	ID string

	// ProviderName is "huggingface" or "openai".
	ProviderName string

	// Dimensions is the fixed output vector length.
	Dimensions int

	// QueryPrefix, when non-empty, must be prepended to every text embedded
	// for retrieval with this model. E5 models require "query: ".
	QueryPrefix string
}

// Catalogue is the ordered list of supported embedding models. The alias is
// what configuration files and the CLI refer to.
var Catalogue = []ModelSpec{
	{
		Alias:        "multilingual-e5-large",
		ID:           "intfloat/multilingual-e5-large",
		ProviderName: "huggingface",
		Dimensions:   1024,
		QueryPrefix:  "query: ",
	},
	{
		Alias:        "multilingual-e5-base",
		ID:           "intfloat/multilingual-e5-base",
		ProviderName: "huggingface",
		Dimensions:   768,
		QueryPrefix:  "query: ",
	},
	{
		Alias:        "multilingual-e5-small",
		ID:           "intfloat/multilingual-e5-small",
		ProviderName: "huggingface",
		Dimensions:   384,
		QueryPrefix:  "query: ",
	},
	{
		Alias:        "paraphrase-multilingual",
		ID:           "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2",
		ProviderName: "huggingface",
		Dimensions:   384,
	},
	{
		Alias:        "granite-multilingual",
		ID:           "ibm-granite/granite-embedding-278m-multilingual",
		ProviderName: "huggingface",
		Dimensions:   768,
	},
	{
		Alias:        "text-embedding-3-small",
		ID:           "text-embedding-3-small",
		ProviderName: "openai",
		Dimensions:   1536,
	},
	{
		Alias:        "text-embedding-3-large",
		ID:           "text-embedding-3-large",
		ProviderName: "openai",
		Dimensions:   3072,
	},
}

// ResolveModel looks up a model spec by alias or wire ID.
func ResolveModel(name string) (ModelSpec, error) {
	for _, m := range Catalogue {
		if m.Alias == name || m.ID == name {
			return m, nil
		}
	}
	return ModelSpec{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}
