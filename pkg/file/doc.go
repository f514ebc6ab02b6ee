// Package file stores small binary objects (profile pictures) and returns
// their public URLs.
//
// Two backends implement Storage: S3Storage for Amazon S3 and S3-compatible
// services, and LocalStorage for development, which writes below a base
// directory and serves files under a URL prefix.
//
//	store, err := file.NewS3Storage(ctx, file.S3Config{
//	    Bucket: "com-kfchess-public",
//	    Region: "us-west-2",
//	})
//	obj, err := store.Put(ctx, "profile-pics/"+uuid.NewString(), data, file.WithPublicRead())
//	fmt.Println(obj.URL)
//
// Keys are slash separated, must not be empty, and must not contain "..".
// When no content type is given, it is sniffed from the first 512 bytes.
package file
