// Package slug generates URL-safe slugs with Unicode normalization.
//
// Diacritics are removed after NFD decomposition, so "Café" becomes "cafe".
// Anything that is not an ASCII letter or digit becomes a separator, and runs
// of separators collapse into one:
//
//	slug.Make("Hello, World!")                     // "hello-world"
//	slug.Make("naïve résumé")                      // "naive-resume"
//	slug.Make("Fish & Chips", slug.CustomReplace(map[string]string{"&": "and"}))
//	                                               // "fish-and-chips"
//	slug.Make("Long Article Title", slug.MaxLength(12))
//	                                               // "long-article"
//
// The CMS derives runtime route paths from post slugs.
package slug
