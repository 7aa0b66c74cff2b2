package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/anisan-cli/reelplay/color"
	"github.com/anisan-cli/reelplay/config"
	"github.com/anisan-cli/reelplay/constant"
	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/icon"
	"github.com/anisan-cli/reelplay/style"
	"github.com/anisan-cli/reelplay/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
)

func errUnknownKey(key string) error {
	return fmt.Errorf(
		"unknown key %s, did you mean %s?",
		style.Fg(color.Red)(key),
		style.Fg(color.Yellow)(config.Closest(key)),
	)
}

func completionConfigKeys(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return lo.Keys(config.Default), cobra.ShellCompDirectiveNoFileComp
}

func completionConfigSections(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return configSections(), cobra.ShellCompDirectiveNoFileComp
}

// configSections lists the sections of the registered keys in order.
func configSections() []string {
	sections := lo.Uniq(lo.MapToSlice(config.Default, func(_ string, f config.Field) string {
		return f.Section()
	}))
	slices.Sort(sections)
	return sections
}

// configFile is where the configuration is persisted.
func configFile() string {
	return filepath.Join(where.Config(), constant.Reelplay+".toml")
}

// lookupField resolves the key given as the first argument or with --key.
func lookupField(cmd *cobra.Command, args []string) (config.Field, error) {
	name := lo.Must(cmd.Flags().GetString("key"))
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		return config.Field{}, errors.New("key is required as an argument or with --key")
	}

	field, ok := config.Default[name]
	if !ok {
		return config.Field{}, errUnknownKey(name)
	}
	return field, nil
}

// persist writes the current values, creating the file when it does not exist yet.
func persist() error {
	if err := config.Validate(); err != nil {
		return err
	}

	err := viper.WriteConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return viper.SafeWriteConfig()
	}
	return err
}

func success(format string, args ...any) {
	fmt.Printf("%s %s\n", style.Fg(color.Green)(icon.Get(icon.Success)), fmt.Sprintf(format, args...))
}

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change playback settings",
}

func init() {
	configCmd.AddCommand(configInfoCmd)
	configInfoCmd.Flags().StringSliceP("key", "k", nil, "Only show these keys")
	configInfoCmd.Flags().StringP("section", "s", "", "Only show keys of this section")
	configInfoCmd.Flags().BoolP("json", "j", false, "Print the fields as JSON")
	configInfoCmd.MarkFlagsMutuallyExclusive("key", "section")
	_ = configInfoCmd.RegisterFlagCompletionFunc("key", completionConfigKeys)
	_ = configInfoCmd.RegisterFlagCompletionFunc("section", completionConfigSections)
}

var configInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe settings with their current and default values",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			keys    = lo.Must(cmd.Flags().GetStringSlice("key"))
			section = lo.Must(cmd.Flags().GetString("section"))
			asJSON  = lo.Must(cmd.Flags().GetBool("json"))
		)

		fields, err := selectFields(keys, section)
		handleErr(err)

		if asJSON {
			lo.Must0(json.NewEncoder(cmd.OutOrStdout()).Encode(fields))
			return
		}

		current := ""
		for _, field := range fields {
			if s := field.Section(); s != current {
				current = s
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", style.Title(strings.ToUpper(s)))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", field.Pretty())
		}
	},
}

// selectFields returns the fields named by keys, or those of section, or all, sorted by key.
func selectFields(keys []string, section string) ([]config.Field, error) {
	var fields []config.Field
	switch {
	case len(keys) > 0:
		for _, name := range keys {
			field, ok := config.Default[name]
			if !ok {
				return nil, errUnknownKey(name)
			}
			fields = append(fields, field)
		}
	case section != "":
		if !lo.Contains(configSections(), section) {
			return nil, fmt.Errorf("unknown section %s, available: %s", section, strings.Join(configSections(), ", "))
		}
		fields = lo.Filter(lo.Values(config.Default), func(f config.Field, _ int) bool {
			return f.Section() == section
		})
	default:
		fields = lo.Values(config.Default)
	}

	slices.SortFunc(fields, func(a, b config.Field) int {
		return strings.Compare(a.Key, b.Key)
	})
	return fields, nil
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configSetCmd.Flags().StringP("key", "k", "", "The key to change")
	configSetCmd.Flags().StringP("value", "v", "", "The new value")
	_ = configSetCmd.RegisterFlagCompletionFunc("key", completionConfigKeys)
}

var configSetCmd = &cobra.Command{
	Use:               "set [key] [value]",
	Short:             "Change a setting and save it",
	Args:              cobra.MaximumNArgs(2),
	ValidArgsFunction: completionConfigKeys,
	Run: func(cmd *cobra.Command, args []string) {
		field, err := lookupField(cmd, args)
		handleErr(err)

		raw := lo.Must(cmd.Flags().GetString("value"))
		if len(args) == 2 {
			raw = args[1]
		} else if !cmd.Flags().Changed("value") {
			handleErr(errors.New("value is required as an argument or with --value"))
		}

		value, err := field.Parse(raw)
		handleErr(err)

		previous := viper.Get(field.Key)
		viper.Set(field.Key, value)
		if err := persist(); err != nil {
			viper.Set(field.Key, previous)
			handleErr(err)
		}

		success("set %s to %s", style.Fg(color.Purple)(field.Key), style.Fg(color.Yellow)(fmt.Sprint(value)))
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configGetCmd.Flags().StringP("key", "k", "", "The key to print")
	_ = configGetCmd.RegisterFlagCompletionFunc("key", completionConfigKeys)
}

var configGetCmd = &cobra.Command{
	Use:               "get [key]",
	Short:             "Print the current value of a setting",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completionConfigKeys,
	Run: func(cmd *cobra.Command, args []string) {
		field, err := lookupField(cmd, args)
		handleErr(err)
		fmt.Fprintln(cmd.OutOrStdout(), viper.Get(field.Key))
	},
}

func init() {
	configCmd.AddCommand(configWriteCmd)
	configWriteCmd.Flags().BoolP("force", "f", false, "Replace an existing file")
}

var configWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Save the current settings to the config file",
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("force")) {
			if err := filesystem.API().Remove(configFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
				handleErr(err)
			}
		}

		handleErr(viper.SafeWriteConfig())
		success("wrote config to %s", configFile())
	},
}

func init() {
	configCmd.AddCommand(configDeleteCmd)
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete",
	Short:   "Remove the config file",
	Aliases: []string{"remove"},
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(filesystem.API().Remove(configFile()))
		success("deleted config")
	},
}

func init() {
	configCmd.AddCommand(configResetCmd)
	configResetCmd.Flags().StringP("key", "k", "", "The key to restore")
	configResetCmd.Flags().StringP("section", "s", "", "Restore every key of this section")
	configResetCmd.Flags().BoolP("all", "a", false, "Restore every key")
	configResetCmd.MarkFlagsMutuallyExclusive("key", "section", "all")
	configResetCmd.MarkFlagsOneRequired("key", "section", "all")
	_ = configResetCmd.RegisterFlagCompletionFunc("key", completionConfigKeys)
	_ = configResetCmd.RegisterFlagCompletionFunc("section", completionConfigSections)
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore settings to their defaults",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			name    = lo.Must(cmd.Flags().GetString("key"))
			section = lo.Must(cmd.Flags().GetString("section"))
			keys    []string
		)
		if name != "" {
			keys = []string{name}
		}

		fields, err := selectFields(keys, section)
		handleErr(err)

		for _, field := range fields {
			viper.Set(field.Key, field.Value)
		}
		handleErr(persist())

		if len(fields) == 1 {
			success("reset %s to %s", style.Fg(color.Purple)(fields[0].Key), style.Fg(color.Yellow)(fmt.Sprint(fields[0].Value)))
			return
		}
		success("reset %d settings", len(fields))
	},
}
