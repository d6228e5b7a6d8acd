// Package msbuild loads, converts and saves MSBuild C# project files.
//
// A [Project] wraps the XML document of one .csproj file and implements
// [project.Module], so it can be placed directly into the dependency graph
// and rewritten by the reconciler:
//
//	p, err := msbuild.Load("src/Contoso.App/Contoso.App.csproj")
//	if err != nil {
//	    return err
//	}
//	if err := msbuild.Convert(p, msbuild.DefaultOptions()); err != nil {
//	    return err // errors.ErrCodeNotConvertible: skip this project
//	}
//	return p.Save()
//
// # Conversion
//
// [Convert] rewrites a legacy (ToolsVersion, msbuild 2003 namespace) project
// into the SDK style by running the [Steps] in order. Every step is exported
// on its own so it can be tested and reused. The document is only modified in
// memory; files are written, and package.config files removed, by
// [Project.Save].
//
// # Pruning
//
// Legacy projects list every source file explicitly while SDK projects glob
// the project directory. [UnreferencedFiles] computes, from the legacy item
// list, the files a conversion would silently pull in, and [RemoveFiles]
// deletes them.
package msbuild
